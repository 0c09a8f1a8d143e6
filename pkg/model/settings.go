package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pwscan/pwscan-go/pkg/props"
)

// SettingsName is the metadata.name of the settings object.
const SettingsName = "settings"

// Keys of the settings object.
const (
	KeyClockRate         = "clock.rate"
	KeyClockAllowedRates = "clock.allowed-rates"
	KeyClockQuantum      = "clock.quantum"
	KeyClockMinQuantum   = "clock.min-quantum"
	KeyClockMaxQuantum   = "clock.max-quantum"
	KeyClockForceQuantum = "clock.force-quantum"
	KeyClockForceRate    = "clock.force-rate"
	KeyLogLevel          = "log.level"
)

// ErrValueRemoved is returned by Apply for a key whose value was deleted.
var ErrValueRemoved = errors.New("value removed")

// Settings is the clock configuration of the service.
type Settings struct {
	Rate         uint32   `json:"rate"`
	AllowedRates []uint32 `json:"allowed_rates"`
	Quantum      uint32   `json:"quantum"`
	MinQuantum   uint32   `json:"min_quantum"`
	MaxQuantum   uint32   `json:"max_quantum"`
	ForceQuantum uint32   `json:"force_quantum"`
	ForceRate    uint32   `json:"force_rate"`
	LogLevel     uint32   `json:"log_level"`
}

// IsKnownKey reports whether key updates a Settings field.
func IsKnownKey(key string) bool {
	return settingsField(&Settings{}, key) != nil || key == KeyClockAllowedRates
}

// Apply updates the field named by key. applied is false for unknown keys.
// A value that does not parse leaves the record unchanged and returns the
// parse error.
func (s *Settings) Apply(key string, value *string) (applied bool, err error) {
	if key == KeyClockAllowedRates {
		if value == nil {
			return false, fmt.Errorf("%s: %w", key, ErrValueRemoved)
		}
		rates, err := props.ParseUint32List(*value)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		s.AllowedRates = rates
		return true, nil
	}

	field := settingsField(s, key)
	if field == nil {
		return false, nil
	}
	if value == nil {
		return false, fmt.Errorf("%s: %w", key, ErrValueRemoved)
	}
	n, err := props.ParseUint32(*value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	*field = n
	return true, nil
}

func settingsField(s *Settings, key string) *uint32 {
	switch key {
	case KeyClockRate:
		return &s.Rate
	case KeyClockQuantum:
		return &s.Quantum
	case KeyClockMinQuantum:
		return &s.MinQuantum
	case KeyClockMaxQuantum:
		return &s.MaxQuantum
	case KeyClockForceQuantum:
		return &s.ForceQuantum
	case KeyClockForceRate:
		return &s.ForceRate
	case KeyLogLevel:
		return &s.LogLevel
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	if s.AllowedRates != nil {
		s.AllowedRates = append([]uint32(nil), s.AllowedRates...)
	}
	return s
}

// String implements fmt.Stringer.
func (s Settings) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rate=%d allowed=%s quantum=%d", s.Rate, props.FormatUint32List(s.AllowedRates), s.Quantum)
	fmt.Fprintf(&b, " min=%d max=%d", s.MinQuantum, s.MaxQuantum)
	if s.ForceRate != 0 {
		fmt.Fprintf(&b, " force-rate=%d", s.ForceRate)
	}
	if s.ForceQuantum != 0 {
		fmt.Fprintf(&b, " force-quantum=%d", s.ForceQuantum)
	}
	return b.String()
}
