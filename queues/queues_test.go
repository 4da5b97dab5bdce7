package queues

// Common initialization and testing tools for all test files.

import (
	"sync/atomic"
	"testing"

	"github.com/gomlx/devctx/platform"
	"github.com/gomlx/devctx/platform/sim"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

var (
	openCLCPU    = platform.Key{Backend: platform.OpenCL, Type: platform.CPU}
	openCLGPU    = platform.Key{Backend: platform.OpenCL, Type: platform.GPU}
	levelZeroGPU = platform.Key{Backend: platform.LevelZero, Type: platform.GPU}
	cudaGPU      = platform.Key{Backend: platform.CUDA, Type: platform.GPU}
	levelZeroCPU = platform.Key{Backend: platform.LevelZero, Type: platform.CPU}
)

// testTopology has:
//
//   - opencl:cpu: 2 queues ("cpu0" and "mixed cpu").
//   - opencl:gpu: 3 queues ("gpu0", "gpu1" and "mixed gpu"), "gpu0" being the runtime's default device.
//   - level_zero:gpu: 1 queue, with the 2 tiles sharing a context.
//   - an unsupported cuda:gpu device, and host platforms that must be ignored.
func testTopology() sim.Topology {
	return sim.Topology{
		Platforms: []sim.PlatformSpec{
			{Name: "Host", Backend: platform.HostBackend, Host: true,
				Devices: []sim.DeviceSpec{{Name: "host", Type: platform.HostDevice}}},
			{Name: "OpenCL CPU", Backend: platform.OpenCL,
				Devices: []sim.DeviceSpec{{Name: "cpu0", Type: platform.CPU}}},
			{Name: "OpenCL GPU 0", Backend: platform.OpenCL,
				Devices: []sim.DeviceSpec{{Name: "gpu0", Type: platform.GPU}}},
			{Name: "OpenCL GPU 1", Backend: platform.OpenCL,
				Devices: []sim.DeviceSpec{{Name: "gpu1", Type: platform.GPU}}},
			{Name: "OpenCL Mixed", Backend: platform.OpenCL,
				Devices: []sim.DeviceSpec{{Name: "mixed cpu", Type: platform.CPU}, {Name: "mixed gpu", Type: platform.GPU}}},
			{Name: "Level Zero", Backend: platform.LevelZero,
				Devices: []sim.DeviceSpec{{Name: "tile0", Type: platform.GPU}, {Name: "tile1", Type: platform.GPU}}},
			{Name: "CUDA", Backend: platform.CUDA,
				Devices: []sim.DeviceSpec{{Name: "cuda0", Type: platform.GPU}}},
			{Name: "OpenCL Host", Backend: platform.OpenCL, Host: true,
				Devices: []sim.DeviceSpec{{Name: "host cpu", Type: platform.CPU}}},
		},
	}
}

// newTestManager creates a Manager over a simulated runtime, closed at the end of the test.
func newTestManager(t *testing.T, topo sim.Topology, options ...sim.Option) (*Manager, *sim.Runtime) {
	rt := sim.New(topo, options...)
	m := New(rt)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m, rt
}

// countingRuntime counts the calls to Platforms.
type countingRuntime struct {
	platform.Runtime
	platformsCalls atomic.Int64
}

func (rt *countingRuntime) Platforms() ([]platform.Platform, error) {
	rt.platformsCalls.Add(1)
	return rt.Runtime.Platforms()
}

// names returns the names of the devices of each group.
func names(groups [][]platform.Device) [][]string {
	result := make([][]string, len(groups))
	for ii, group := range groups {
		for _, d := range group {
			result[ii] = append(result[ii], d.Name())
		}
	}
	return result
}

// autoRelease returns a function that checks there was no error and returns the queue, released
// at the end of the test. Use it as autoRelease(t)(m.Queue(key, index)).
func autoRelease(t *testing.T) func(q *Queue, err error) *Queue {
	return func(q *Queue, err error) *Queue {
		require.NoError(t, err)
		require.NotNil(t, q)
		t.Cleanup(func() { require.NoError(t, q.Release()) })
		return q
	}
}
