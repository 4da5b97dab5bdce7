package queues

import (
	"sync"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// deviceGroup is one catalog entry: the devices sharing a context. The queue is created on devices[0].
type deviceGroup struct {
	platform platform.Platform
	devices  []platform.Device
}

// catalogEntry is built once, on first access, and never changes afterward.
type catalogEntry struct {
	once   sync.Once
	groups []deviceGroup
}

// catalog partitions the devices visible to the runtime by key.
//
// Entries are allocated up front for the supported keys, so the map is read-only after newCatalog
// and can be accessed concurrently.
type catalog struct {
	rt      platform.Runtime
	entries map[platform.Key]*catalogEntry
	metrics *metrics
}

func newCatalog(rt platform.Runtime, keys []platform.Key, m *metrics) *catalog {
	c := &catalog{rt: rt, entries: make(map[platform.Key]*catalogEntry, len(keys)), metrics: m}
	for _, key := range keys {
		c.entries[key] = &catalogEntry{}
	}
	return c
}

// groups returns the device groups for key, building them on first use.
// It returns nil for keys not in the catalog, and an empty list if the enumeration failed.
//
// The returned slice is shared, it must not be modified.
func (c *catalog) groups(key platform.Key) []deviceGroup {
	entry, found := c.entries[key]
	if !found {
		return nil
	}
	entry.once.Do(func() {
		groups, err := enumerate(c.rt, key)
		if err != nil {
			klog.Errorf("devctx: failed to enumerate %s devices, none will be available: %+v", key, err)
			groups = nil
		}
		klog.V(1).Infof("devctx: catalog for %s has %d device groups", key, len(groups))
		c.metrics.catalogGroups.WithLabelValues(key.String()).Set(float64(len(groups)))
		entry.groups = groups
	})
	return entry.groups
}

// enumerate lists the device groups for key:
//
//   - Host platforms are skipped.
//   - A platform with exactly one device contributes it as a single-device group, if it matches.
//   - A platform with several devices contributes one group with all its matching devices, which will share one context.
//
// Panics raised by the runtime are returned as errors.
func enumerate(rt platform.Runtime, key platform.Key) (groups []deviceGroup, err error) {
	defer catch(&err, "enumerating %s devices", key)
	platforms, err := rt.Platforms()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to list platforms")
	}
	for _, p := range platforms {
		if p.IsHost() || p.Backend() != key.Backend {
			continue
		}
		devices, err := p.Devices()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to list devices of platform %q", p.Name())
		}
		if len(devices) == 1 {
			if devices[0].Type() == key.Type {
				groups = append(groups, deviceGroup{platform: p, devices: devices})
			}
			continue
		}
		var selected []platform.Device
		for _, d := range devices {
			if d.Type() == key.Type {
				selected = append(selected, d)
			}
		}
		if len(selected) > 0 {
			groups = append(groups, deviceGroup{platform: p, devices: selected})
		}
	}
	return groups, nil
}
