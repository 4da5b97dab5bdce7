// Package sim implements a simulated platform.Runtime.
//
// It is used in tests and by the devctx tool when no hardware runtime is available. Platforms and
// devices are described by a Topology, built programmatically or loaded from a YAML file, and
// failures of the underlying runtime can be injected with Failures.
package sim

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// TopologyEnv is the name of the environment variable with the path to a YAML topology file read by FromEnv.
	TopologyEnv = "DEVCTX_TOPOLOGY"

	// SelectorEnv is the name of the environment variable overriding the default device selection,
	// formatted as "<backend>:<device_type>[:<index>]".
	SelectorEnv = "DEVCTX_DEVICE_SELECTOR"
)

// Failures lists the runtime calls that should fail. The zero value fails nothing.
type Failures struct {
	Platforms     bool // Runtime.Platforms returns an error.
	Devices       bool // Platform.Devices returns an error.
	DefaultDevice bool // Runtime.DefaultDevice returns an error.
	Context       bool // Runtime.NewContext returns an error.
	Queue         bool // Runtime.NewQueue returns an error.

	// Panic makes the failing calls above panic instead of returning an error.
	Panic bool
}

// Stats counts the resources created by a Runtime.
type Stats struct {
	Contexts, Queues, OpenQueues int
}

// Runtime is a simulated platform.Runtime. It is safe for concurrent use.
type Runtime struct {
	platforms []*Platform
	selector  string

	muFailures sync.Mutex
	failures   Failures

	numContexts, numQueues, numOpenQueues atomic.Int64
}

var _ platform.Runtime = (*Runtime)(nil)

// Option configures a Runtime created by New.
type Option func(rt *Runtime)

// WithSelector overrides the default device selection, see platform.ParseSelector for the format.
func WithSelector(selector string) Option {
	return func(rt *Runtime) {
		rt.selector = selector
	}
}

// WithFailures configures the runtime calls that fail.
func WithFailures(failures Failures) Option {
	return func(rt *Runtime) {
		rt.failures = failures
	}
}

// New creates a simulated runtime exposing the given topology.
func New(topo Topology, options ...Option) *Runtime {
	rt := &Runtime{selector: topo.DefaultSelector}
	for _, p := range topo.Platforms {
		rt.platforms = append(rt.platforms, newPlatform(rt, p))
	}
	for _, option := range options {
		option(rt)
	}
	return rt
}

// TopologyFromEnv returns the topology in the file $DEVCTX_TOPOLOGY, or DefaultTopology if it is not set.
// $DEVCTX_DEVICE_SELECTOR, if set, overrides its default device selection.
func TopologyFromEnv() (Topology, error) {
	topo := DefaultTopology()
	if topoPath, found := os.LookupEnv(TopologyEnv); found && topoPath != "" {
		var err error
		topo, err = LoadTopology(topoPath)
		if err != nil {
			return Topology{}, errors.WithMessagef(err, "loading topology from $%s", TopologyEnv)
		}
		klog.V(1).Infof("sim: loaded topology with %d platforms from %q", len(topo.Platforms), topoPath)
	}
	if selector := os.Getenv(SelectorEnv); selector != "" {
		if _, _, err := platform.ParseSelector(selector); err != nil {
			return Topology{}, errors.WithMessagef(err, "invalid $%s", SelectorEnv)
		}
		topo.DefaultSelector = selector
	}
	return topo, nil
}

// FromEnv creates a simulated runtime with the topology returned by TopologyFromEnv.
func FromEnv() (*Runtime, error) {
	topo, err := TopologyFromEnv()
	if err != nil {
		return nil, err
	}
	return New(topo), nil
}

// SetFailures changes the runtime calls that fail, for subsequent calls.
func (rt *Runtime) SetFailures(failures Failures) {
	rt.muFailures.Lock()
	defer rt.muFailures.Unlock()
	rt.failures = failures
}

// fail returns an error (or panics) if the call selected by which is configured to fail.
func (rt *Runtime) fail(which func(f *Failures) bool, format string, args ...any) error {
	rt.muFailures.Lock()
	failures := rt.failures
	rt.muFailures.Unlock()
	if !which(&failures) {
		return nil
	}
	err := errors.Errorf("sim: injected failure: "+format, args...)
	if failures.Panic {
		panic(err)
	}
	return err
}

// Stats returns counts of the contexts and queues created so far.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Contexts:   int(rt.numContexts.Load()),
		Queues:     int(rt.numQueues.Load()),
		OpenQueues: int(rt.numOpenQueues.Load()),
	}
}

// Platforms implements platform.Runtime.
func (rt *Runtime) Platforms() ([]platform.Platform, error) {
	if err := rt.fail(func(f *Failures) bool { return f.Platforms }, "Platforms()"); err != nil {
		return nil, err
	}
	platforms := make([]platform.Platform, len(rt.platforms))
	for ii, p := range rt.platforms {
		platforms[ii] = p
	}
	return platforms, nil
}

// deviceScore ranks device types for the default selection.
var deviceScore = map[platform.DeviceType]int{
	platform.GPU:         3,
	platform.Accelerator: 2,
	platform.CPU:         1,
	platform.HostDevice:  0,
}

// DefaultDevice implements platform.Runtime.
//
// If a selector is configured, it returns the index-th device (across platforms, in enumeration order)
// matching the selector's key. Otherwise, it returns the first device of the best scoring type:
// gpu, then accelerator, then cpu, then host.
func (rt *Runtime) DefaultDevice() (platform.Device, error) {
	if err := rt.fail(func(f *Failures) bool { return f.DefaultDevice }, "DefaultDevice()"); err != nil {
		return nil, err
	}
	if rt.selector != "" {
		key, index, err := platform.ParseSelector(rt.selector)
		if err != nil {
			return nil, err
		}
		count := 0
		for _, p := range rt.platforms {
			for _, d := range p.devices {
				if platform.KeyOf(d) != key {
					continue
				}
				if count == index {
					return d, nil
				}
				count++
			}
		}
		return nil, errors.Errorf("sim: no device matches selector %q (%d devices of %s)", rt.selector, count, key)
	}

	var selected *Device
	for _, p := range rt.platforms {
		for _, d := range p.devices {
			if selected == nil || deviceScore[d.Type()] > deviceScore[selected.Type()] {
				selected = d
			}
		}
	}
	if selected == nil {
		return nil, errors.New("sim: no devices available")
	}
	return selected, nil
}

// NewContext implements platform.Runtime.
func (rt *Runtime) NewContext(devices ...platform.Device) (platform.Context, error) {
	if err := rt.fail(func(f *Failures) bool { return f.Context }, "NewContext(%d devices)", len(devices)); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errors.New("sim: NewContext requires at least one device")
	}
	var owner *Platform
	for _, device := range devices {
		d, ok := device.(*Device)
		if !ok || d.platform.rt != rt {
			return nil, errors.Errorf("sim: device %v doesn't belong to this runtime", device)
		}
		if owner == nil {
			owner = d.platform
		} else if d.platform != owner {
			return nil, errors.Errorf("sim: devices of a context must belong to one platform, got %q and %q",
				owner.Name(), d.platform.Name())
		}
	}
	rt.numContexts.Add(1)
	return newContext(devices), nil
}

// NewQueue implements platform.Runtime.
func (rt *Runtime) NewQueue(ctx platform.Context, device platform.Device) (platform.Queue, error) {
	if err := rt.fail(func(f *Failures) bool { return f.Queue }, "NewQueue()"); err != nil {
		return nil, err
	}
	c, ok := ctx.(*Context)
	if !ok {
		return nil, errors.Errorf("sim: context %v doesn't belong to this runtime", ctx)
	}
	d, ok := device.(*Device)
	if !ok || d.platform.rt != rt {
		return nil, errors.Errorf("sim: device %v doesn't belong to this runtime", device)
	}
	if !platform.ContainsDevice(c, d) {
		return nil, errors.Errorf("sim: device %s is not part of context %s", d, c)
	}
	rt.numQueues.Add(1)
	rt.numOpenQueues.Add(1)
	return newQueue(rt, c, d), nil
}
