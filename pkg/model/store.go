package model

// Result is what a scan returns: every resolved device, in arrival order,
// and the settings record.
type Result struct {
	Devices     []Device `json:"devices"`
	Settings    Settings `json:"settings"`
	HasSettings bool     `json:"has_settings"`
}

// Inputs returns the devices with DirectionInput.
func (r *Result) Inputs() []Device {
	return r.filter(DirectionInput)
}

// Outputs returns the devices with DirectionOutput.
func (r *Result) Outputs() []Device {
	return r.filter(DirectionOutput)
}

func (r *Result) filter(dir Direction) []Device {
	var out []Device
	for _, d := range r.Devices {
		if d.Direction == dir {
			out = append(out, d)
		}
	}
	return out
}

// Store accumulates entities during a scan.
type Store struct {
	devices     []Device
	settings    Settings
	hasSettings bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// AddDevice appends d. Devices are never merged.
func (s *Store) AddDevice(d Device) {
	s.devices = append(s.devices, d)
}

// Settings returns the mutable settings record and marks it present.
func (s *Store) Settings() *Settings {
	s.hasSettings = true
	return &s.settings
}

// DeviceCount returns the number of devices added so far.
func (s *Store) DeviceCount() int {
	return len(s.devices)
}

// Snapshot copies the store's contents.
func (s *Store) Snapshot() Result {
	devices := make([]Device, len(s.devices))
	copy(devices, s.devices)
	return Result{
		Devices:     devices,
		Settings:    s.settings.Clone(),
		HasSettings: s.hasSettings,
	}
}
