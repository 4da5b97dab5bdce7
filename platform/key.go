package platform

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Key is the composite (backend, device type) address used for all catalog and cache lookups.
type Key struct {
	Backend Backend
	Type    DeviceType
}

// String implements fmt.Stringer, in the form "<backend>:<device_type>", e.g. "level_zero:gpu".
func (k Key) String() string {
	return k.Backend.String() + ":" + k.Type.String()
}

// ParseKey parses the "<backend>:<device_type>" form returned by Key.String. It is case-insensitive.
func ParseKey(s string) (Key, error) {
	backendStr, typeStr, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return Key{}, errors.Errorf("invalid device key %q: expected \"<backend>:<device_type>\"", s)
	}
	backend, err := BackendString(strings.ToLower(backendStr))
	if err != nil {
		return Key{}, errors.Wrapf(err, "invalid device key %q", s)
	}
	deviceType, err := DeviceTypeString(strings.ToLower(typeStr))
	if err != nil {
		return Key{}, errors.Wrapf(err, "invalid device key %q", s)
	}
	return Key{Backend: backend, Type: deviceType}, nil
}

// ParseSelector parses a device selector "<backend>:<device_type>[:<index>]".
// The index defaults to 0.
func ParseSelector(s string) (key Key, index int, err error) {
	s = strings.TrimSpace(s)
	keyStr := s
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		keyStr = parts[0] + ":" + parts[1]
		index, err = strconv.Atoi(parts[2])
		if err != nil || index < 0 {
			return Key{}, 0, errors.Errorf("invalid device selector %q: index must be a non-negative integer", s)
		}
	}
	key, err = ParseKey(keyStr)
	if err != nil {
		return Key{}, 0, errors.WithMessagef(err, "invalid device selector %q", s)
	}
	return key, index, nil
}
