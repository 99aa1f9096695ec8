package platform

import (
	"os/user"
	"strconv"
	"sync"
)

var (
	userNames  sync.Map // uid string -> name
	groupNames sync.Map // gid string -> name
)

// OwnerNames resolves numeric ids to user and group names.
// Unknown ids resolve to their decimal form; lookups are memoized.
func OwnerNames(uid, gid uint32) (owner, group string) {
	return lookupName(&userNames, strconv.FormatUint(uint64(uid), 10), lookupUser),
		lookupName(&groupNames, strconv.FormatUint(uint64(gid), 10), lookupGroup)
}

func lookupName(cache *sync.Map, id string, lookup func(string) (string, error)) string {
	if v, ok := cache.Load(id); ok {
		return v.(string) //nolint:errcheck // only strings are stored
	}
	name, err := lookup(id)
	if err != nil || name == "" {
		name = id
	}
	cache.Store(id, name)
	return name
}

func lookupUser(id string) (string, error) {
	u, err := user.LookupId(id)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func lookupGroup(id string) (string, error) {
	g, err := user.LookupGroupId(id)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}
