package sim

import (
	"os"

	"github.com/gomlx/devctx/platform"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Topology describes the platforms and devices a simulated Runtime exposes.
type Topology struct {
	Platforms []PlatformSpec `yaml:"platforms"`

	// DefaultSelector, if set, overrides the default device selection. See platform.ParseSelector for the format.
	DefaultSelector string `yaml:"default_selector,omitempty"`
}

// PlatformSpec describes one simulated platform.
type PlatformSpec struct {
	Name    string           `yaml:"name"`
	Backend platform.Backend `yaml:"backend"`
	Host    bool             `yaml:"host,omitempty"`
	Devices []DeviceSpec     `yaml:"devices"`
}

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	Name string              `yaml:"name"`
	Type platform.DeviceType `yaml:"type"`
}

// DefaultTopology is used when no topology file is configured: a host platform, an OpenCL CPU
// platform, an OpenCL GPU platform and a Level Zero platform with a two-tile GPU.
func DefaultTopology() Topology {
	return Topology{
		Platforms: []PlatformSpec{
			{Name: "SYCL host platform", Backend: platform.HostBackend, Host: true,
				Devices: []DeviceSpec{{Name: "SYCL host device", Type: platform.HostDevice}}},
			{Name: "Intel(R) OpenCL", Backend: platform.OpenCL,
				Devices: []DeviceSpec{{Name: "Intel(R) Core(TM) i7-10710U CPU", Type: platform.CPU}}},
			{Name: "Intel(R) OpenCL HD Graphics", Backend: platform.OpenCL,
				Devices: []DeviceSpec{{Name: "Intel(R) Graphics Gen9 [0x9bca]", Type: platform.GPU}}},
			{Name: "Intel(R) Level-Zero", Backend: platform.LevelZero,
				Devices: []DeviceSpec{
					{Name: "Intel(R) Data Center GPU Max 1550 (tile 0)", Type: platform.GPU},
					{Name: "Intel(R) Data Center GPU Max 1550 (tile 1)", Type: platform.GPU},
				}},
		},
	}
}

// ParseTopology parses a YAML topology.
func ParseTopology(data []byte) (Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return Topology{}, errors.Wrap(err, "failed to parse topology")
	}
	if err := topo.Validate(); err != nil {
		return Topology{}, err
	}
	return topo, nil
}

// LoadTopology reads and parses a YAML topology file.
func LoadTopology(filePath string) (Topology, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Topology{}, errors.Wrapf(err, "failed to read topology file %q", filePath)
	}
	topo, err := ParseTopology(data)
	if err != nil {
		return Topology{}, errors.WithMessagef(err, "topology file %q", filePath)
	}
	return topo, nil
}

// Validate checks that all platforms and devices are named, and that the selector (if any) parses.
func (topo Topology) Validate() error {
	for ii, p := range topo.Platforms {
		if p.Name == "" {
			return errors.Errorf("platform #%d has no name", ii)
		}
		for jj, d := range p.Devices {
			if d.Name == "" {
				return errors.Errorf("device #%d of platform %q has no name", jj, p.Name)
			}
		}
	}
	if topo.DefaultSelector != "" {
		if _, _, err := platform.ParseSelector(topo.DefaultSelector); err != nil {
			return errors.WithMessage(err, "invalid default_selector")
		}
	}
	return nil
}

// Marshal returns the YAML encoding of the topology.
func (topo Topology) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(topo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal topology")
	}
	return data, nil
}
