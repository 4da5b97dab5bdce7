package queues

import (
	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stack is an activation stack: the queue at the top is the "current" queue.
//
// Slot 0 holds the default queue and is never popped; slots above it are explicit activations,
// added with Push and removed with Pop. The stack is seeded on first use with the runtime's
// default device. If no default device can be resolved, the stack stays empty and Current
// returns ErrNoActiveQueue: Push and SetDefault fail on it too.
//
// A Stack belongs to one goroutine (or OS thread) and is not safe for concurrent use.
// Create one with Manager.NewStack or get the calling thread's one with Manager.ThreadStack.
type Stack struct {
	m      *Manager
	seeded bool
	slots  []*binding
}

// init seeds the stack on first use.
func (s *Stack) init() {
	if s.seeded {
		return
	}
	s.seeded = true
	b, err := s.m.defaultBinding()
	if err != nil {
		klog.Warningf("devctx: no default queue available: %v", err)
		return
	}
	klog.V(1).Infof("devctx: activation stack seeded with %s queue on %q", b.key, b.device.Name())
	s.slots = []*binding{b}
}

func (s *Stack) top() *binding {
	if len(s.slots) == 0 {
		return nil
	}
	return s.slots[len(s.slots)-1]
}

// Depth returns the number of queues in the stack, including the default: 0 if no default queue is available.
func (s *Stack) Depth() int {
	s.init()
	return len(s.slots)
}

// NumActivated returns the number of queues pushed on top of the default queue.
func (s *Stack) NumActivated() int {
	s.init()
	if len(s.slots) == 0 {
		return 0
	}
	return len(s.slots) - 1
}

// Current returns a new handle to the queue at the top of the stack, or ErrNoActiveQueue.
// The caller owns the returned Queue and must Release it.
func (s *Stack) Current() (q *Queue, err error) {
	defer func() { s.m.metrics.request(opCurrent, err) }()
	s.init()
	top := s.top()
	if top == nil {
		return nil, ErrNoActiveQueue
	}
	return top.newHandle(), nil
}

// IsCurrent reports whether q refers to the same context and device as the queue at the top of the stack.
// The stack doesn't take ownership of q.
func (s *Stack) IsCurrent(q *Queue) bool {
	s.init()
	top := s.top()
	if top == nil || q == nil || q.IsReleased() {
		return false
	}
	return top.same(q.b)
}

// SetDefault replaces the default queue (slot 0) with the index-th queue for key, keeping any
// activations above it, and returns a new handle to it.
//
// It fails with ErrNoActiveQueue if the stack is empty, because no default queue could be seeded.
// On error the stack is not changed.
func (s *Stack) SetDefault(key platform.Key, index int) (q *Queue, err error) {
	defer func() { s.m.metrics.request(opSetDefault, err) }()
	s.init()
	b, err := s.m.resolve(key, index)
	if err != nil {
		return nil, err
	}
	if len(s.slots) == 0 {
		err = errors.WithMessagef(ErrNoActiveQueue, "can't set default queue to %s #%d, no usable default", key, index)
		klog.Warningf("devctx: %v", err)
		return nil, err
	}
	s.slots[0] = b
	klog.V(2).Infof("devctx: default queue set to %s #%d (depth %d)", key, index, len(s.slots))
	return b.newHandle(), nil
}

// Push activates the index-th queue for key, making it the current queue, and returns a new handle to it.
//
// It fails with ErrNoActiveQueue if the stack has no default queue. On error the stack is not changed.
func (s *Stack) Push(key platform.Key, index int) (q *Queue, err error) {
	defer func() { s.m.metrics.request(opPush, err) }()
	s.init()
	b, err := s.m.resolve(key, index)
	if err != nil {
		return nil, err
	}
	if len(s.slots) == 0 {
		err = errors.WithMessagef(ErrNoActiveQueue, "can't push %s #%d without a default queue, use SetDefault first", key, index)
		klog.Warningf("devctx: %v", err)
		return nil, err
	}
	s.slots = append(s.slots, b)
	klog.V(2).Infof("devctx: pushed %s #%d (depth %d)", key, index, len(s.slots))
	return b.newHandle(), nil
}

// Pop removes the queue at the top of the stack. The default queue is never removed: Pop is a no-op
// if there are no activations.
func (s *Stack) Pop() {
	s.init()
	if len(s.slots) <= 1 {
		klog.V(1).Info("devctx: no activated queues, nothing to pop")
		return
	}
	s.slots[len(s.slots)-1] = nil
	s.slots = s.slots[:len(s.slots)-1]
	klog.V(2).Infof("devctx: popped queue (depth %d)", len(s.slots))
}
