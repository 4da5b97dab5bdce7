// Package queues manages execution queues for the devices of a platform.Runtime.
//
// A Manager discovers the devices of the runtime grouped by (backend, device type) key, caches one
// queue per device group, and keeps activation stacks (see Stack) that let callers push a
// "current" queue, replace the default one and pop back to a previous one.
//
// Only a fixed set of keys is supported, see SupportedKeys. Devices are enumerated, and queues
// created, lazily on the first access to each key, and reused for the lifetime of the Manager.
// Failures of the runtime are logged and handled as if no matching hardware was present.
//
// Every *Queue returned is a new handle owned by the caller, who should Release it.
//
// Example:
//
//	m := queues.New(rt)
//	stack := m.NewStack()
//	q, err := stack.Push(platform.Key{Backend: platform.LevelZero, Type: platform.GPU}, 0)
//	if err != nil {
//		return err
//	}
//	defer q.Release()
//	defer stack.Pop()
package queues

import (
	"slices"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// supportedKeys is the closed set of keys for which queues are cached.
var supportedKeys = []platform.Key{
	{Backend: platform.OpenCL, Type: platform.CPU},
	{Backend: platform.OpenCL, Type: platform.GPU},
	{Backend: platform.LevelZero, Type: platform.GPU},
}

// SupportedKeys returns the (backend, device type) combinations the manager caches queues for.
func SupportedKeys() []platform.Key {
	return slices.Clone(supportedKeys)
}

// Manager caches the queues of a runtime. It is safe for concurrent use, except for Close.
type Manager struct {
	rt      platform.Runtime
	catalog *catalog
	cache   *queueCache
	metrics *metrics
	threads threadStacks

	registerer prometheus.Registerer
}

// Option configures a Manager created by New.
type Option func(m *Manager)

// WithRegisterer registers the manager's prometheus metrics with reg.
// Registering two managers with the same registry panics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// New creates a Manager for the given runtime. Nothing is enumerated until first needed.
func New(rt platform.Runtime, options ...Option) *Manager {
	m := &Manager{rt: rt}
	for _, option := range options {
		option(m)
	}
	m.metrics = newMetrics(m.registerer)
	m.catalog = newCatalog(rt, supportedKeys, m.metrics)
	m.cache = newQueueCache(rt, m.catalog, supportedKeys, m.metrics)
	m.threads.stacks = make(map[int]*Stack)
	return m
}

// Runtime returns the runtime the manager was created with.
func (m *Manager) Runtime() platform.Runtime {
	return m.rt
}

// isSupported reports whether key is one of SupportedKeys.
func (m *Manager) isSupported(key platform.Key) bool {
	_, found := m.cache.entries[key]
	return found
}

// NumQueues returns the number of queues available for key: 0 if the key is not supported or
// no matching device was found.
func (m *Manager) NumQueues(key platform.Key) int {
	if !m.isSupported(key) {
		klog.Warningf("devctx: %s: %v", key, ErrUnsupportedKey)
		return 0
	}
	return len(m.cache.bindings(key))
}

// Devices returns, for each queue available for key in order, the devices sharing its context.
// The queue submits to the first device of each group. Devices are owned by the runtime.
func (m *Manager) Devices(key platform.Key) [][]platform.Device {
	if !m.isSupported(key) {
		return nil
	}
	bindings := m.cache.bindings(key)
	groups := make([][]platform.Device, len(bindings))
	for ii, b := range bindings {
		groups[ii] = slices.Clone(b.ctx.Devices())
	}
	return groups
}

// resolve returns the index-th cached binding of key, or ErrUnsupportedKey / ErrNotFound.
func (m *Manager) resolve(key platform.Key, index int) (*binding, error) {
	if !m.isSupported(key) {
		klog.Warningf("devctx: %s: %v", key, ErrUnsupportedKey)
		return nil, errors.WithMessagef(ErrUnsupportedKey, "%s", key)
	}
	bindings := m.cache.bindings(key)
	if index < 0 || index >= len(bindings) {
		klog.Warningf("devctx: %s device %d not found on system (%d available)", key, index, len(bindings))
		return nil, errors.WithMessagef(ErrNotFound, "%s device %d (%d available)", key, index, len(bindings))
	}
	return bindings[index], nil
}

// Queue returns a new handle to the index-th cached queue for key.
// Two calls with the same arguments return different handles to the same queue (see Queue.Equal).
// The caller owns the returned Queue and must Release it.
func (m *Manager) Queue(key platform.Key, index int) (q *Queue, err error) {
	defer func() { m.metrics.request(opGet, err) }()
	b, err := m.resolve(key, index)
	if err != nil {
		return nil, err
	}
	return b.newHandle(), nil
}

// QueueFromContextAndDevice creates a new queue for the given context and device, bypassing the cache.
// The context and device are borrowed.
//
// The caller owns the returned Queue: the runtime queue is closed when it is released.
func (m *Manager) QueueFromContextAndDevice(ctx platform.Context, device platform.Device) (q *Queue, err error) {
	defer func() { m.metrics.request(opAdHoc, err) }()
	if ctx == nil || device == nil {
		return nil, errors.New("QueueFromContextAndDevice requires a context and a device")
	}
	rtQueue, err := m.newRuntimeQueue(ctx, device)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create queue on %q", device.Name())
	}
	return newBinding(platform.KeyOf(device), rtQueue, m.metrics).newHandle(), nil
}

func (m *Manager) newRuntimeQueue(ctx platform.Context, device platform.Device) (q platform.Queue, err error) {
	defer catch(&err, "creating queue on %q", device.Name())
	return m.rt.NewQueue(ctx, device)
}

// defaultBinding returns the cached binding seeding new stacks: the first queue of the key of the
// runtime's default device, if the key is supported and has queues.
func (m *Manager) defaultBinding() (*binding, error) {
	device, err := m.defaultDevice()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to resolve default device")
	}
	key := platform.KeyOf(device)
	if !m.isSupported(key) {
		return nil, errors.WithMessagef(ErrUnsupportedKey, "default device %q is %s", device.Name(), key)
	}
	bindings := m.cache.bindings(key)
	if len(bindings) == 0 {
		return nil, errors.WithMessagef(ErrNotFound, "no %s queues for default device %q", key, device.Name())
	}
	return bindings[0], nil
}

func (m *Manager) defaultDevice() (device platform.Device, err error) {
	defer catch(&err, "resolving default device")
	device, err = m.rt.DefaultDevice()
	if err == nil && device == nil {
		err = errors.New("runtime returned no default device")
	}
	return
}

// NewStack returns a new activation stack, owned by the caller. It is seeded on first use.
func (m *Manager) NewStack() *Stack {
	return &Stack{m: m}
}

// Close closes all cached queues (once their outstanding handles are released). The Manager
// and its stacks must not be used afterward.
func (m *Manager) Close() error {
	m.threads.reset()
	return m.cache.close()
}
