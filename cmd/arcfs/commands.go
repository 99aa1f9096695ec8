package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meigma/arcfs"
	"github.com/meigma/arcfs/archive"
	"github.com/meigma/arcfs/disk"
)

func (c *command) ls(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: ls <archive> [dir]", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	dir := r.RootDir()
	if len(args) == 2 {
		if dir, err = r.ResolvePath(args[1]); err != nil {
			return err
		}
	}
	if !dir.Dir {
		return c.printEntries([]arcfs.Entry{dir})
	}
	children, err := r.List(dir)
	if err != nil {
		return err
	}
	return c.printEntries(children)
}

func (c *command) printEntries(entries []arcfs.Entry) error {
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 1, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		name := e.Name
		if e.Dir {
			name += "/"
		}
		if e.LinkTarget != "" {
			name += " -> " + e.LinkTarget
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n", e.Attr, owner(e), e.Size, e.ModTime.Format(time.DateTime), name)
	}
	return tw.Flush()
}

func owner(e arcfs.Entry) string {
	if e.Owner == "" && e.Group == "" {
		return "-"
	}
	return e.Owner + ":" + e.Group
}

// entryView is the YAML shape printed by stat.
type entryView struct {
	Path       string    `yaml:"path"`
	Name       string    `yaml:"name"`
	Type       string    `yaml:"type"`
	Attr       string    `yaml:"attr"`
	Size       int64     `yaml:"size"`
	Owner      string    `yaml:"owner,omitempty"`
	Group      string    `yaml:"group,omitempty"`
	UID        int       `yaml:"uid"`
	GID        int       `yaml:"gid"`
	Modified   time.Time `yaml:"modified"`
	Accessed   time.Time `yaml:"accessed,omitempty"`
	Changed    time.Time `yaml:"changed,omitempty"`
	LinkTarget string    `yaml:"linkTarget,omitempty"`
	Archive    string    `yaml:"archive"`
}

func newEntryView(e arcfs.Entry) entryView {
	kind := "file"
	switch {
	case e.Dir:
		kind = "directory"
	case e.LinkTarget != "":
		kind = "link"
	}
	return entryView{
		Path:       e.Fullname,
		Name:       e.Name,
		Type:       kind,
		Attr:       e.Attr,
		Size:       e.Size,
		Owner:      e.Owner,
		Group:      e.Group,
		UID:        e.UID,
		GID:        e.GID,
		Modified:   e.ModTime.UTC(),
		Accessed:   e.AccessTime.UTC(),
		Changed:    e.ChangeTime.UTC(),
		LinkTarget: e.LinkTarget,
		Archive:    e.Root,
	}
}

func (c *command) stat(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: stat <archive> <path>", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	e, err := r.ResolvePath(args[1])
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(c.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(newEntryView(e)); err != nil {
		return err
	}
	return enc.Close()
}

func (c *command) mkdir(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: mkdir <archive> <dir>", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	return r.MakeDir(ctx, args[1], c.progress)
}

func (c *command) mv(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: mv <archive> <path> <name>", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	e, err := r.ResolvePath(args[1])
	if err != nil {
		return err
	}
	return r.Rename(ctx, e, args[2], c.progress)
}

func (c *command) rm(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: rm <archive> <path>...", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	items, err := resolveAll(r, args[1:])
	if err != nil {
		return err
	}
	return r.Remove(ctx, items, c.progress)
}

func (c *command) add(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: add <archive> <dir> <file>...", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	dest, err := r.ResolvePath(args[1])
	if err != nil {
		return err
	}
	if !dest.Dir {
		return fmt.Errorf("%s is not a directory", dest.Fullname)
	}

	d, err := c.disk()
	if err != nil {
		return err
	}
	// Each file keeps only its base name below dest, so files are grouped
	// by their host parent directory.
	groups := make(map[string][]arcfs.Entry)
	var order []string
	for _, p := range args[2:] {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		e, err := d.ResolvePath(abs)
		if err != nil {
			return err
		}
		parent := filepath.Dir(abs)
		if _, ok := groups[parent]; !ok {
			order = append(order, parent)
		}
		groups[parent] = append(groups[parent], e)
	}
	for _, parent := range order {
		base, err := d.ResolvePath(parent)
		if err != nil {
			return err
		}
		if err := r.Copy(ctx, groups[parent], &base, dest, c.progress); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) extract(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: extract <archive> <dest> <path>...", errUsage)
	}
	r, err := c.open(ctx, args[0])
	if err != nil {
		return err
	}
	items, err := resolveAll(r, args[2:])
	if err != nil {
		return err
	}

	d, err := c.disk()
	if err != nil {
		return err
	}
	if !d.Exists(args[1]) {
		if err := d.MakeDir(ctx, args[1], nil); err != nil {
			return err
		}
	}
	dest, err := d.ResolvePath(args[1])
	if err != nil {
		return err
	}
	return r.Copy(ctx, items, nil, dest, c.progress)
}

// disk returns a host reader whose relative paths resolve against the
// process working directory.
func (c *command) disk() (*disk.Reader, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return arcfs.NewDisk(
		disk.WithHome(wd),
		disk.WithLogger(c.logger),
		disk.WithOverwrite(c.cfg.Overwrite),
	)
}

func resolveAll(r *archive.Reader, paths []string) ([]arcfs.Entry, error) {
	items := make([]arcfs.Entry, 0, len(paths))
	for _, p := range paths {
		e, err := r.ResolvePath(p)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}
