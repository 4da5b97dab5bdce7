// Package platform defines the contract between devctx and a compute runtime: how platforms and
// devices are enumerated, and how contexts and queues are constructed over them.
//
// Implementations must return comparable handles (usually pointers): the queue manager compares
// Device and Context values with == to decide whether two queues refer to the same resource.
// See package platform/sim for a simulated runtime.
package platform

//go:generate go tool enumer -type=Backend -linecomment -text -output=gen_backend_enumer.go
//go:generate go tool enumer -type=DeviceType -linecomment -text -output=gen_devicetype_enumer.go

// Backend names a compute runtime/driver family.
type Backend int

const (
	HostBackend Backend = iota // host
	OpenCL                     // opencl
	LevelZero                  // level_zero
	CUDA                       // cuda
)

// DeviceType is the coarse category of a device.
type DeviceType int

const (
	HostDevice  DeviceType = iota // host
	CPU                           // cpu
	GPU                           // gpu
	Accelerator                   // accelerator
)

// Runtime enumerates platforms and constructs contexts and queues.
//
// Errors returned (or panics raised) by a Runtime are treated by the queue manager as
// "no matching hardware".
type Runtime interface {
	// Platforms lists the platforms visible to the process, in a stable order.
	Platforms() ([]Platform, error)

	// DefaultDevice returns the device the runtime selects when the user expresses no preference.
	DefaultDevice() (Device, error)

	// NewContext creates a context spanning the given devices. All devices must belong to the same platform.
	NewContext(devices ...Device) (Context, error)

	// NewQueue creates a queue bound to ctx, submitting to device. The device must be one of ctx.Devices().
	NewQueue(ctx Context, device Device) (Queue, error)
}

// Platform is one driver/vendor installation exposing devices.
type Platform interface {
	Name() string
	Backend() Backend

	// IsHost reports whether the platform represents the process's own host rather than real hardware.
	IsHost() bool

	Devices() ([]Device, error)
}

// Device is a handle to one physical or logical compute device. It is owned by the runtime.
type Device interface {
	Name() string
	Type() DeviceType
	Platform() Platform
}

// Context binds one or more devices of a platform.
type Context interface {
	Devices() []Device
}

// Queue is a runtime work queue bound to exactly one Context and one of its devices.
type Queue interface {
	Context() Context
	Device() Device

	// Close releases the runtime resources of the queue.
	Close() error
}

// KeyOf returns the Key (backend of the device's platform, device type) of a device.
func KeyOf(device Device) Key {
	return Key{Backend: device.Platform().Backend(), Type: device.Type()}
}

// ContainsDevice reports whether device is one of ctx's devices.
func ContainsDevice(ctx Context, device Device) bool {
	for _, d := range ctx.Devices() {
		if d == device {
			return true
		}
	}
	return false
}
