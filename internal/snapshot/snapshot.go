// Package snapshot encodes an archive's enumerated index as a FlatBuffers
// buffer so it can be cached and reloaded without parsing the archive.
//
// The layout is equivalent to this schema:
//
//	file_identifier "ARCS";
//	table Entry {
//	  fullname:string; owner:string; group:string;
//	  uid:long; gid:long;
//	  mtime_ns:long; atime_ns:long; ctime_ns:long;
//	  attr:string; size:long; dir:bool; link_target:string;
//	}
//	table Snapshot { version:uint; entries:[Entry]; }
//	root_type Snapshot;
//
// The archive path is not stored: the same content may live at several
// paths, so callers supply it when decoding.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/arcfs/internal/fstype"
	"github.com/meigma/arcfs/internal/pathutil"
)

// Version is the snapshot layout version written by Encode.
const Version = 1

const identifier = "ARCS"

// ErrInvalid is returned when a buffer is not a snapshot this package can read.
var ErrInvalid = errors.New("arcfs: invalid snapshot")

// Snapshot table slots.
const (
	snapVersion = iota
	snapEntries
	snapFields
)

// Entry table slots.
const (
	entFullname = iota
	entOwner
	entGroup
	entUID
	entGID
	entMtime
	entAtime
	entCtime
	entAttr
	entSize
	entDir
	entLinkTarget
	entFields
)

// vt converts a field slot to its vtable offset.
func vt(slot int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*slot) //nolint:gosec // slot counts are tiny
}

// Encode serializes entries, which must be sorted by fullname.
func Encode(entries []fstype.Entry) []byte {
	b := flatbuffers.NewBuilder(256 + 128*len(entries))

	offsets := make([]flatbuffers.UOffsetT, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		offsets[i] = encodeEntry(b, &entries[i])
	}

	b.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	vec := b.EndVector(len(offsets))

	b.StartObject(snapFields)
	b.PrependUint32Slot(snapVersion, Version, 0)
	b.PrependUOffsetTSlot(snapEntries, vec, 0)
	root := b.EndObject()
	b.FinishWithFileIdentifier(root, []byte(identifier))
	return b.FinishedBytes()
}

func encodeEntry(b *flatbuffers.Builder, e *fstype.Entry) flatbuffers.UOffsetT {
	fullname := b.CreateString(e.Fullname)
	owner := b.CreateString(e.Owner)
	group := b.CreateString(e.Group)
	attr := b.CreateString(e.Attr)
	var link flatbuffers.UOffsetT
	if e.LinkTarget != "" {
		link = b.CreateString(e.LinkTarget)
	}

	b.StartObject(entFields)
	b.PrependUOffsetTSlot(entFullname, fullname, 0)
	b.PrependUOffsetTSlot(entOwner, owner, 0)
	b.PrependUOffsetTSlot(entGroup, group, 0)
	b.PrependInt64Slot(entUID, int64(e.UID), 0)
	b.PrependInt64Slot(entGID, int64(e.GID), 0)
	b.PrependInt64Slot(entMtime, unixNano(e.ModTime), 0)
	b.PrependInt64Slot(entAtime, unixNano(e.AccessTime), 0)
	b.PrependInt64Slot(entCtime, unixNano(e.ChangeTime), 0)
	b.PrependUOffsetTSlot(entAttr, attr, 0)
	b.PrependInt64Slot(entSize, e.Size, 0)
	b.PrependBoolSlot(entDir, e.Dir, false)
	if link != 0 {
		b.PrependUOffsetTSlot(entLinkTarget, link, 0)
	}
	return b.EndObject()
}

// Decode parses a buffer produced by Encode. root is recorded as the Root
// of every entry.
func Decode(data []byte, root string) (entries []fstype.Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("%w: %v", ErrInvalid, r)
		}
	}()
	if len(data) < 2*flatbuffers.SizeUOffsetT || string(data[flatbuffers.SizeUOffsetT:2*flatbuffers.SizeUOffsetT]) != identifier {
		return nil, ErrInvalid
	}

	snap := flatbuffers.Table{Bytes: data, Pos: flatbuffers.GetUOffsetT(data)}
	if v := snap.GetUint32Slot(vt(snapVersion), 0); v != Version {
		return nil, fmt.Errorf("%w: version %d", ErrInvalid, v)
	}

	o := flatbuffers.UOffsetT(snap.Offset(vt(snapEntries)))
	if o == 0 {
		return []fstype.Entry{}, nil
	}
	n := snap.VectorLen(o)
	start := snap.Vector(o)
	entries = make([]fstype.Entry, n)
	for i := range n {
		pos := snap.Indirect(start + flatbuffers.UOffsetT(i)*flatbuffers.SizeUOffsetT) //nolint:gosec // i < n
		entries[i] = decodeEntry(&flatbuffers.Table{Bytes: data, Pos: pos}, root)
	}
	return entries, nil
}

func decodeEntry(t *flatbuffers.Table, root string) fstype.Entry {
	full := str(t, entFullname)
	name := pathutil.Orgname(full)
	return fstype.Entry{
		Fullname:   full,
		Orgname:    name,
		Name:       pathutil.Base(name),
		Owner:      str(t, entOwner),
		Group:      str(t, entGroup),
		UID:        int(t.GetInt64Slot(vt(entUID), 0)),
		GID:        int(t.GetInt64Slot(vt(entGID), 0)),
		ModTime:    fromNano(t.GetInt64Slot(vt(entMtime), 0)),
		AccessTime: fromNano(t.GetInt64Slot(vt(entAtime), 0)),
		ChangeTime: fromNano(t.GetInt64Slot(vt(entCtime), 0)),
		Attr:       str(t, entAttr),
		Size:       t.GetInt64Slot(vt(entSize), 0),
		Dir:        t.GetBoolSlot(vt(entDir), false),
		Backend:    fstype.BackendArchive,
		Root:       root,
		LinkTarget: str(t, entLinkTarget),
	}
}

func str(t *flatbuffers.Table, slot int) string {
	o := flatbuffers.UOffsetT(t.Offset(vt(slot)))
	if o == 0 {
		return ""
	}
	return t.String(o + t.Pos)
}

// unixNano maps the zero time to 0 so it survives a round trip.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
