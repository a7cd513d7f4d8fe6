package integration

import (
	"sort"
	"time"

	"github.com/urmzd/homai-hub/pkg/device"
)

// merge folds an incoming report into the stored device. It returns the
// stored record and whether it was newly created. The caller holds the
// write lock.
func (m *Manager) merge(in device.Device, now time.Time) (*device.Device, bool) {
	stored, ok := m.devices[in.ID]
	if !ok {
		d := in.Clone()
		d.Room = ""
		d.NormalizeCapabilities()
		d.PruneState()
		d.LastSeen = now
		m.devices[d.ID] = &d
		return &d, true
	}

	if stored.Name == "" {
		stored.Name = in.Name
	}
	if stored.Manufacturer == "" {
		stored.Manufacturer = in.Manufacturer
	}
	if stored.Model == "" {
		stored.Model = in.Model
	}
	if stored.Type == "" || stored.Type == device.TypeOther {
		stored.Type = in.Type
	}
	if in.Address != "" {
		stored.Address = in.Address
	}
	if len(in.Capabilities) > 0 {
		stored.Capabilities = append([]device.Capability(nil), in.Capabilities...)
		stored.NormalizeCapabilities()
	}
	if stored.State == nil {
		stored.State = device.State{}
	}
	for k, v := range in.State {
		stored.State[k] = v
	}
	stored.PruneState()
	stored.Online = in.Online
	touch(stored, now)
	return stored, false
}

// applyState merges a partial state into a stored device. The caller holds
// the write lock.
func (m *Manager) applyState(id string, st device.State, now time.Time) (*device.Device, bool) {
	stored, ok := m.devices[id]
	if !ok {
		return nil, false
	}
	if stored.State == nil {
		stored.State = device.State{}
	}
	for k, v := range st {
		if stored.HasCapability(k) {
			stored.State[k] = v
		}
	}
	stored.Online = true
	touch(stored, now)
	return stored, true
}

// touch advances LastSeen, keeping it strictly increasing.
func touch(d *device.Device, now time.Time) {
	if !now.After(d.LastSeen) {
		now = d.LastSeen.Add(time.Nanosecond)
	}
	d.LastSeen = now
}

// snapshot copies the devices matching keep, sorted by id. The caller holds
// at least the read lock.
func (m *Manager) snapshot(keep func(*device.Device) bool) []device.Device {
	out := make([]device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		if keep == nil || keep(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
