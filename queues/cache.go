package queues

import (
	"sync"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type cacheEntry struct {
	once     sync.Once
	bindings []*binding
}

// queueCache holds one queue per catalog group, in catalog order, for each key.
//
// If constructing any context or queue of a key fails, the key has no queues at all.
type queueCache struct {
	rt      platform.Runtime
	catalog *catalog
	entries map[platform.Key]*cacheEntry
	metrics *metrics
}

func newQueueCache(rt platform.Runtime, c *catalog, keys []platform.Key, m *metrics) *queueCache {
	qc := &queueCache{rt: rt, catalog: c, entries: make(map[platform.Key]*cacheEntry, len(keys)), metrics: m}
	for _, key := range keys {
		qc.entries[key] = &cacheEntry{}
	}
	return qc
}

// bindings returns the cached queues for key, building them on first use.
// The returned slice is shared, it must not be modified.
func (qc *queueCache) bindings(key platform.Key) []*binding {
	entry, found := qc.entries[key]
	if !found {
		return nil
	}
	entry.once.Do(func() {
		groups := qc.catalog.groups(key)
		bindings, err := qc.build(key, groups)
		if err != nil {
			klog.Errorf("devctx: failed to create %s queues, none will be available: %+v", key, err)
			qc.metrics.cacheBuilds.WithLabelValues(key.String(), resultFailed).Inc()
			return
		}
		qc.metrics.cacheBuilds.WithLabelValues(key.String(), resultOK).Inc()
		entry.bindings = bindings
	})
	return entry.bindings
}

// build creates one context and queue per group. On failure, the queues already created are closed.
func (qc *queueCache) build(key platform.Key, groups []deviceGroup) (bindings []*binding, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, b := range bindings {
			if closeErr := b.unref(); closeErr != nil {
				klog.Warningf("devctx: %v", closeErr)
			}
		}
		bindings = nil
	}()
	defer catch(&err, "creating %s queues", key)

	for ii, group := range groups {
		ctx, err := qc.rt.NewContext(group.devices...)
		if err != nil {
			return bindings, errors.WithMessagef(err, "failed to create context for %s group #%d (platform %q)",
				key, ii, group.platform.Name())
		}
		q, err := qc.rt.NewQueue(ctx, group.devices[0])
		if err != nil {
			return bindings, errors.WithMessagef(err, "failed to create queue for %s device %q", key, group.devices[0].Name())
		}
		b := newBinding(key, q, qc.metrics)
		b.refs.Add(1) // Owned by the cache.
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// close drops the cache's reference to every queue built so far.
func (qc *queueCache) close() error {
	var firstErr error
	for _, entry := range qc.entries {
		// Prevent building after close.
		entry.once.Do(func() {})
		for _, b := range entry.bindings {
			if err := b.unref(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		entry.bindings = nil
	}
	return firstErr
}
