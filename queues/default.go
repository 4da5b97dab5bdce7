package queues

import (
	"sync"

	"github.com/gomlx/devctx/platform"
	"github.com/gomlx/devctx/platform/sim"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// defaultManager is created on the first call to Default. Protected by muDefault.
	defaultManager *Manager
	defaultRuntime platform.Runtime
	muDefault      sync.Mutex
)

// SetDefaultRuntime configures the runtime used by the process default Manager.
// It must be called before the first call to Default, otherwise it returns an error.
func SetDefaultRuntime(rt platform.Runtime) error {
	muDefault.Lock()
	defer muDefault.Unlock()
	if defaultManager != nil {
		return errors.New("default queue manager already created, SetDefaultRuntime must be called before Default")
	}
	defaultRuntime = rt
	return nil
}

// Default returns the process default Manager, creating it on first use.
//
// It uses the runtime given to SetDefaultRuntime, or else the simulated runtime configured by the
// environment (see sim.FromEnv). If the environment is misconfigured, the error is logged and a
// runtime with no devices is used.
func Default() *Manager {
	muDefault.Lock()
	defer muDefault.Unlock()
	if defaultManager != nil {
		return defaultManager
	}
	rt := defaultRuntime
	if rt == nil {
		simRT, err := sim.FromEnv()
		if err != nil {
			klog.Errorf("devctx: failed to configure runtime from environment, no devices will be available: %+v", err)
			simRT = sim.New(sim.Topology{})
		}
		rt = simRT
	}
	defaultManager = New(rt)
	return defaultManager
}

// NumQueues calls Default().NumQueues.
func NumQueues(key platform.Key) int {
	return Default().NumQueues(key)
}

// Get calls Default().Queue.
func Get(key platform.Key, index int) (*Queue, error) {
	return Default().Queue(key, index)
}

// QueueFromContextAndDevice calls Default().QueueFromContextAndDevice.
func QueueFromContextAndDevice(ctx platform.Context, device platform.Device) (*Queue, error) {
	return Default().QueueFromContextAndDevice(ctx, device)
}

// ThreadStack calls Default().ThreadStack.
func ThreadStack() *Stack {
	return Default().ThreadStack()
}
