package queues

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThreadStack(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stack := m.ThreadStack()
	require.Same(t, stack, m.ThreadStack())
	_ = autoRelease(t)(stack.Push(levelZeroGPU, 0))
	require.Equal(t, 2, m.ThreadStack().Depth())

	otherCh := make(chan *Stack)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		otherCh <- m.ThreadStack()
	}()
	other := <-otherCh
	if hasThreadIDs {
		// A goroutine locked to another thread gets its own stack.
		require.NotSame(t, stack, other)
		require.Equal(t, 1, other.Depth())
		require.Equal(t, 2, m.numThreadStacks())
	} else {
		// All threads share one stack.
		require.Same(t, stack, other)
		require.Equal(t, 1, m.numThreadStacks())
	}

	m.ReleaseThreadStack()
	fresh := m.ThreadStack()
	require.NotSame(t, stack, fresh)
	require.Equal(t, 1, fresh.Depth())

	// Closing the manager forgets all stacks.
	require.NoError(t, m.Close())
	require.Equal(t, 0, m.numThreadStacks())
}

func TestThreadIDs(t *testing.T) {
	require.Equal(t, runtime.GOOS == "linux", hasThreadIDs)
	msg := sharedThreadStackWarning()
	require.Contains(t, msg, runtime.GOOS)
	require.Contains(t, msg, "NewStack")
}
