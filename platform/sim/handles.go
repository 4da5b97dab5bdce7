package sim

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gomlx/devctx/platform"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Platform is a simulated platform.Platform.
type Platform struct {
	rt      *Runtime
	id      uuid.UUID
	spec    PlatformSpec
	devices []*Device
}

func newPlatform(rt *Runtime, spec PlatformSpec) *Platform {
	p := &Platform{rt: rt, id: uuid.New(), spec: spec}
	for _, d := range spec.Devices {
		p.devices = append(p.devices, &Device{platform: p, id: uuid.New(), spec: d})
	}
	return p
}

// Name implements platform.Platform.
func (p *Platform) Name() string { return p.spec.Name }

// Backend implements platform.Platform.
func (p *Platform) Backend() platform.Backend { return p.spec.Backend }

// IsHost implements platform.Platform.
func (p *Platform) IsHost() bool { return p.spec.Host }

// Devices implements platform.Platform.
func (p *Platform) Devices() ([]platform.Device, error) {
	if err := p.rt.fail(func(f *Failures) bool { return f.Devices }, "Devices() of platform %q", p.Name()); err != nil {
		return nil, err
	}
	devices := make([]platform.Device, len(p.devices))
	for ii, d := range p.devices {
		devices[ii] = d
	}
	return devices, nil
}

// String implements fmt.Stringer.
func (p *Platform) String() string {
	return fmt.Sprintf("Platform[%q, backend=%s]", p.Name(), p.Backend())
}

// Device is a simulated platform.Device.
type Device struct {
	platform *Platform
	id       uuid.UUID
	spec     DeviceSpec
}

// Name implements platform.Device.
func (d *Device) Name() string { return d.spec.Name }

// Type implements platform.Device.
func (d *Device) Type() platform.DeviceType { return d.spec.Type }

// Platform implements platform.Device.
func (d *Device) Platform() platform.Platform { return d.platform }

// ID uniquely identifies the device within the process.
func (d *Device) ID() uuid.UUID { return d.id }

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("%q (%s)", d.Name(), platform.KeyOf(d))
}

// Context is a simulated platform.Context.
type Context struct {
	id      uuid.UUID
	devices []platform.Device
}

func newContext(devices []platform.Device) *Context {
	return &Context{id: uuid.New(), devices: append([]platform.Device(nil), devices...)}
}

// Devices implements platform.Context.
func (c *Context) Devices() []platform.Device { return c.devices }

// String implements fmt.Stringer.
func (c *Context) String() string {
	names := make([]string, len(c.devices))
	for ii, d := range c.devices {
		names[ii] = d.Name()
	}
	return fmt.Sprintf("Context[%s: %s]", c.id.String()[:8], strings.Join(names, ", "))
}

// Queue is a simulated platform.Queue.
type Queue struct {
	rt     *Runtime
	id     uuid.UUID
	ctx    *Context
	device *Device
	closed atomic.Bool
}

func newQueue(rt *Runtime, ctx *Context, device *Device) *Queue {
	return &Queue{rt: rt, id: uuid.New(), ctx: ctx, device: device}
}

// Context implements platform.Queue.
func (q *Queue) Context() platform.Context { return q.ctx }

// Device implements platform.Queue.
func (q *Queue) Device() platform.Device { return q.device }

// IsClosed reports whether Close was called.
func (q *Queue) IsClosed() bool { return q.closed.Load() }

// Close implements platform.Queue. Closing a queue twice is an error.
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return errors.Errorf("sim: queue %s already closed", q.id)
	}
	q.rt.numOpenQueues.Add(-1)
	return nil
}

// String implements fmt.Stringer.
func (q *Queue) String() string {
	return fmt.Sprintf("Queue[%s on %s]", q.id.String()[:8], q.device)
}
