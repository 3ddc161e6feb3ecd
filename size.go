package bodylimit

import (
	"fmt"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Size is a byte count that unmarshals from human-readable strings: "1048576",
// "512KB", "1.5MiB", "2g". Suffixes are interpreted in powers of 1024, the
// convention for body-limit settings. Embed it in host config structs and
// pass Bytes() to New.
type Size int64

// ParseSize converts a human-readable size string to a byte count.
func ParseSize(s string) (Size, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	return Size(n), nil
}

// Bytes returns the size as an int64, the form New and NewPolicy take.
func (s Size) Bytes() int64 { return int64(s) }

// String renders the size in human-readable binary units.
func (s Size) String() string { return units.BytesSize(float64(s)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler, so Size fields decode directly
// from YAML config files. Bare integers and quoted size strings both work.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}
