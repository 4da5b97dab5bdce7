package queues

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// binding is the shared resource behind Queue handles: a runtime queue with its context and device.
//
// It is reference counted. Cached bindings hold one reference owned by the cache, so releasing
// handles never closes them; ad-hoc bindings are closed when their last handle is released.
type binding struct {
	key     platform.Key
	queue   platform.Queue
	ctx     platform.Context
	device  platform.Device
	refs    atomic.Int64
	metrics *metrics
}

// newBinding returns a binding with no references: the owner must take one, see newHandle and queueCache.
func newBinding(key platform.Key, q platform.Queue, m *metrics) *binding {
	return &binding{key: key, queue: q, ctx: q.Context(), device: q.Device(), metrics: m}
}

// same reports whether both bindings refer to the same context and device.
func (b *binding) same(other *binding) bool {
	return b.ctx == other.ctx && b.device == other.device
}

// newHandle returns a new caller-owned Queue handle referencing b.
func (b *binding) newHandle() *Queue {
	b.refs.Add(1)
	b.metrics.handlesLive.Inc()
	q := &Queue{b: b}
	runtime.SetFinalizer(q, finalizeQueue)
	return q
}

// unref drops one reference, closing the runtime queue when none is left.
func (b *binding) unref() error {
	if b.refs.Add(-1) > 0 {
		return nil
	}
	klog.V(2).Infof("closing queue %s on %q", b.key, b.device.Name())
	if err := b.queue.Close(); err != nil {
		return errors.WithMessagef(err, "failed to close %s queue on %q", b.key, b.device.Name())
	}
	return nil
}

// Queue is a caller-owned handle to an execution queue.
//
// Queues returned by the manager are always new handles, even when they refer to the same cached
// queue: each must be released with Release, independently of the others. Handles are cheap, the
// underlying runtime queue is shared. A Queue is safe for concurrent use.
type Queue struct {
	b        *binding
	released atomic.Bool
}

func finalizeQueue(q *Queue) {
	if !q.released.Load() {
		klog.V(1).Infof("queue handle %s garbage collected without Release()", q)
	}
	if err := q.Release(); err != nil {
		klog.Errorf("Queue.Release failed: %v", err)
	}
}

// Release the handle. The Queue is no longer valid afterward.
// It is a no-op if the handle was already released, and it is called automatically if the
// Queue is garbage collected.
//
// Releasing never affects other handles, nor the manager's cache.
func (q *Queue) Release() error {
	if q == nil || !q.released.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(q, nil)
	q.b.metrics.handlesLive.Dec()
	return q.b.unref()
}

// IsReleased reports whether Release was called. A nil Queue is considered released.
func (q *Queue) IsReleased() bool {
	return q == nil || q.released.Load()
}

// Clone returns a new owned handle to the same queue.
func (q *Queue) Clone() (*Queue, error) {
	if q.IsReleased() {
		return nil, ErrReleased
	}
	return q.b.newHandle(), nil
}

// Equal reports whether q and other refer to the same context and device.
// Released handles are never equal to anything.
func (q *Queue) Equal(other *Queue) bool {
	if q == nil || other == nil || q.IsReleased() || other.IsReleased() {
		return false
	}
	return q.b.same(other.b)
}

// Key returns the (backend, device type) of the queue's device, or the zero Key for a nil Queue.
func (q *Queue) Key() platform.Key {
	if q == nil {
		return platform.Key{}
	}
	return q.b.key
}

// Device returns the device the queue submits to, or nil for a nil Queue. It is owned by the runtime.
func (q *Queue) Device() platform.Device {
	if q == nil {
		return nil
	}
	return q.b.device
}

// Context returns the context the queue is bound to, or nil for a nil Queue. It is owned by the runtime.
func (q *Queue) Context() platform.Context {
	if q == nil {
		return nil
	}
	return q.b.ctx
}

// Runtime returns the underlying runtime queue, or ErrReleased. It must not be closed by the caller.
func (q *Queue) Runtime() (platform.Queue, error) {
	if q.IsReleased() {
		return nil, ErrReleased
	}
	return q.b.queue, nil
}

// String implements fmt.Stringer.
func (q *Queue) String() string {
	if q == nil {
		return "Queue[nil]"
	}
	if q.IsReleased() {
		return "Queue[released]"
	}
	return fmt.Sprintf("Queue[%s, device=%q, %d devices in context]", q.b.key, q.b.device.Name(), len(q.b.ctx.Devices()))
}
