package queues

import (
	"runtime"
	"sync"

	"k8s.io/klog/v2"
)

// threadStacks maps OS thread ids to their activation stack.
type threadStacks struct {
	mu     sync.Mutex
	stacks map[int]*Stack
}

var warnSharedThreadStack sync.Once

// sharedThreadStackWarning is logged once per process by ThreadStack on systems without thread ids.
func sharedThreadStackWarning() string {
	return "devctx: thread ids are not available on " + runtime.GOOS +
		", ThreadStack returns one stack shared by all threads: use it from a single thread, or use NewStack"
}

func (ts *threadStacks) reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	clear(ts.stacks)
}

// ThreadStack returns the activation stack of the calling OS thread, creating it on first use.
//
// Go doesn't have thread-local storage. This is meant for callers entering Go from foreign threads
// (e.g. language bindings through cgo), each of which keeps its own stack across calls. The calling
// goroutine must be locked to its thread (runtime.LockOSThread) for as long as it uses the stack,
// and the returned Stack must only be used from that thread. Go code should prefer NewStack.
//
// On systems without thread ids (anything but linux) all callers share one stack, which is not
// safe for concurrent use: a warning is logged on first use.
func (m *Manager) ThreadStack() *Stack {
	if !hasThreadIDs {
		warnSharedThreadStack.Do(func() { klog.Warning(sharedThreadStackWarning()) })
	}
	tid := threadID()
	m.threads.mu.Lock()
	defer m.threads.mu.Unlock()
	stack, found := m.threads.stacks[tid]
	if !found {
		stack = m.NewStack()
		m.threads.stacks[tid] = stack
	}
	return stack
}

// ReleaseThreadStack forgets the activation stack of the calling OS thread. It should be called
// before the thread exits. A later ThreadStack call from the same thread starts a new stack.
func (m *Manager) ReleaseThreadStack() {
	tid := threadID()
	m.threads.mu.Lock()
	defer m.threads.mu.Unlock()
	delete(m.threads.stacks, tid)
}

// numThreadStacks returns the number of threads with a stack.
func (m *Manager) numThreadStacks() int {
	m.threads.mu.Lock()
	defer m.threads.mu.Unlock()
	return len(m.threads.stacks)
}
