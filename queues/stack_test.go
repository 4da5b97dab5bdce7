package queues

import (
	"fmt"
	"testing"

	"github.com/gomlx/devctx/platform"
	"github.com/gomlx/devctx/platform/sim"
	"github.com/stretchr/testify/require"
)

func TestStackSeeding(t *testing.T) {
	testCases := []struct {
		selector   string
		wantKey    platform.Key
		wantDevice string // Empty if the stack should not be seeded.
	}{
		{"", openCLGPU, "gpu0"},
		// The first queue of the default device's key is used, whatever the device.
		{"opencl:gpu:1", openCLGPU, "gpu0"},
		{"opencl:gpu:2", openCLGPU, "gpu0"},
		{"opencl:cpu:1", openCLCPU, "cpu0"},
		{"level_zero:gpu:1", levelZeroGPU, "tile0"},
		{"opencl:cpu:2", openCLCPU, "cpu0"}, // "host cpu" is on a host platform, with no cached queue.
		{"cuda:gpu", platform.Key{}, ""},
		{"level_zero:cpu", platform.Key{}, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.selector, func(t *testing.T) {
			m, _ := newTestManager(t, testTopology(), sim.WithSelector(tc.selector))
			stack := m.NewStack()
			if tc.wantDevice == "" {
				require.Equal(t, 0, stack.Depth())
				_, err := stack.Current()
				require.ErrorIs(t, err, ErrNoActiveQueue)
				return
			}
			require.Equal(t, 1, stack.Depth())
			require.Equal(t, 0, stack.NumActivated())
			q := autoRelease(t)(stack.Current())
			fmt.Printf("\tselector %q: %s\n", tc.selector, q)
			require.Equal(t, tc.wantKey, q.Key())
			require.Equal(t, tc.wantDevice, q.Device().Name())
			require.True(t, q.Equal(autoRelease(t)(m.Queue(tc.wantKey, 0))))
		})
	}
}

func TestStackSeedingFailures(t *testing.T) {
	for _, failures := range []sim.Failures{
		{DefaultDevice: true},
		{DefaultDevice: true, Panic: true},
		{Context: true},
		{Queue: true, Panic: true},
	} {
		t.Run(fmt.Sprintf("%+v", failures), func(t *testing.T) {
			m, _ := newTestManager(t, testTopology(), sim.WithFailures(failures))
			stack := m.NewStack()
			require.Equal(t, 0, stack.Depth())
			_, err := stack.Current()
			require.ErrorIs(t, err, ErrNoActiveQueue)
		})
	}
}

func TestPopFloor(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	stack := m.NewStack()
	def := autoRelease(t)(stack.Current())

	_ = autoRelease(t)(stack.Push(levelZeroGPU, 0))
	_ = autoRelease(t)(stack.Push(openCLCPU, 1))
	require.Equal(t, 3, stack.Depth())
	require.Equal(t, 2, stack.NumActivated())
	for range 20 {
		stack.Pop()
	}
	require.Equal(t, 1, stack.Depth())
	require.Equal(t, 0, stack.NumActivated())
	require.True(t, stack.IsCurrent(def))

	// An empty stack stays empty.
	m2, _ := newTestManager(t, testTopology(), sim.WithSelector("cuda:gpu"))
	empty := m2.NewStack()
	for range 20 {
		empty.Pop()
	}
	require.Equal(t, 0, empty.Depth())
}

func TestPushPopInverse(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	stack := m.NewStack()

	pushes := []struct {
		key   platform.Key
		index int
	}{
		{levelZeroGPU, 0},
		{openCLCPU, 0},
		{openCLGPU, 2},
		{openCLCPU, 0}, // Same queue pushed twice.
		{openCLGPU, 1},
	}
	history := []*Queue{autoRelease(t)(stack.Current())}
	for _, p := range pushes {
		q := autoRelease(t)(stack.Push(p.key, p.index))
		require.True(t, stack.IsCurrent(q))
		require.Equal(t, p.key, q.Key())
		history = append(history, q)
	}
	require.Equal(t, len(pushes), stack.NumActivated())

	for ii := len(history) - 1; ii > 0; ii-- {
		require.Truef(t, stack.IsCurrent(history[ii]), "before pop #%d", len(history)-ii)
		stack.Pop()
		current := autoRelease(t)(stack.Current())
		require.Truef(t, current.Equal(history[ii-1]), "after pop #%d: got %s, wanted %s",
			len(history)-ii, current, history[ii-1])
	}
	require.Equal(t, 1, stack.Depth())
}

func TestSetDefaultDurability(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	stack := m.NewStack()

	_ = autoRelease(t)(stack.Push(openCLCPU, 0))
	top := autoRelease(t)(stack.Push(levelZeroGPU, 0))
	newDefault := autoRelease(t)(stack.SetDefault(openCLGPU, 2))
	require.Equal(t, "mixed gpu", newDefault.Device().Name())

	// Activations are preserved.
	require.Equal(t, 3, stack.Depth())
	require.True(t, stack.IsCurrent(top))

	for range 5 {
		stack.Pop()
	}
	require.True(t, stack.IsCurrent(newDefault))

	// Further activations pop back to the new default.
	_ = autoRelease(t)(stack.Push(openCLCPU, 1))
	stack.Pop()
	require.True(t, stack.IsCurrent(newDefault))
}

// stackSnapshot captures the observable state of a stack.
type stackSnapshot struct {
	depth   int
	current *Queue
}

func snapshot(t *testing.T, s *Stack) stackSnapshot {
	current, err := s.Current()
	if err != nil {
		require.ErrorIs(t, err, ErrNoActiveQueue)
		return stackSnapshot{depth: s.Depth()}
	}
	t.Cleanup(func() { require.NoError(t, current.Release()) })
	return stackSnapshot{depth: s.Depth(), current: current}
}

func requireUnchanged(t *testing.T, s *Stack, before stackSnapshot) {
	after := snapshot(t, s)
	require.Equal(t, before.depth, after.depth)
	if before.current == nil {
		require.Nil(t, after.current)
		return
	}
	require.True(t, before.current.Equal(after.current), "current queue changed from %s to %s", before.current, after.current)
}

func TestStackRejectedRequests(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	stack := m.NewStack()
	_ = autoRelease(t)(stack.Push(levelZeroGPU, 0))

	testCases := []struct {
		key     platform.Key
		index   int
		wantErr error
	}{
		{cudaGPU, 0, ErrUnsupportedKey},
		{levelZeroCPU, 0, ErrUnsupportedKey},
		{platform.Key{Backend: platform.HostBackend, Type: platform.HostDevice}, 0, ErrUnsupportedKey},
		{openCLGPU, 3, ErrNotFound},
		{openCLGPU, -1, ErrNotFound},
		{levelZeroGPU, 1, ErrNotFound},
	}
	for _, tc := range testCases {
		before := snapshot(t, stack)

		q, err := stack.Push(tc.key, tc.index)
		require.ErrorIsf(t, err, tc.wantErr, "Push(%s, %d)", tc.key, tc.index)
		require.Nil(t, q)
		requireUnchanged(t, stack, before)

		q, err = stack.SetDefault(tc.key, tc.index)
		require.ErrorIsf(t, err, tc.wantErr, "SetDefault(%s, %d)", tc.key, tc.index)
		require.Nil(t, q)
		requireUnchanged(t, stack, before)
		fmt.Printf("\t%s #%d: %v\n", tc.key, tc.index, err)
	}
}

func TestEmptyStack(t *testing.T) {
	m, _ := newTestManager(t, testTopology(), sim.WithSelector("level_zero:cpu"))
	stack := m.NewStack()
	require.Equal(t, 0, stack.Depth())
	require.Equal(t, 0, stack.NumActivated())
	require.False(t, stack.IsCurrent(nil))
	stack.Pop()

	// A live queue, current in another stack, is not current in an empty one.
	live := autoRelease(t)(m.Queue(openCLGPU, 0))
	other := m.NewStack()
	_ = autoRelease(t)(other.SetDefault(openCLGPU, 0))
	require.True(t, other.IsCurrent(live))
	require.False(t, stack.IsCurrent(live))

	// Without a usable default, pushing and replacing the default both fail.
	before := snapshot(t, stack)
	q, err := stack.Push(openCLGPU, 0)
	require.ErrorIs(t, err, ErrNoActiveQueue)
	require.Nil(t, q)
	requireUnchanged(t, stack, before)

	q, err = stack.SetDefault(openCLCPU, 1)
	require.ErrorIs(t, err, ErrNoActiveQueue)
	require.Nil(t, q)
	requireUnchanged(t, stack, before)

	// Key validation comes first.
	_, err = stack.SetDefault(cudaGPU, 0)
	require.ErrorIs(t, err, ErrUnsupportedKey)
	require.Equal(t, 0, stack.Depth())
}

func TestStacksAreIndependent(t *testing.T) {
	m, _ := newTestManager(t, testTopology())
	s1, s2 := m.NewStack(), m.NewStack()
	q1 := autoRelease(t)(s1.Push(levelZeroGPU, 0))
	_ = autoRelease(t)(s2.SetDefault(openCLCPU, 0))

	require.True(t, s1.IsCurrent(q1))
	require.False(t, s2.IsCurrent(q1))
	require.Equal(t, 2, s1.Depth())
	require.Equal(t, 1, s2.Depth())

	cur2 := autoRelease(t)(s2.Current())
	require.Equal(t, openCLCPU, cur2.Key())
	s1.Pop()
	cur1 := autoRelease(t)(s1.Current())
	require.Equal(t, openCLGPU, cur1.Key())
}
