package platform

import (
	"sort"
	"time"

	"wake-go/internal/wake"
)

// permissions maps a permission axis, named by its settings page, to its
// grant state.
type permissions map[wake.SettingsPage]wake.PermissionState

// osEntry is one scheduled or delivered notification as the OS holds it.
type osEntry struct {
	Handle    string         `json:"handle"`
	Kind      wake.EntryKind `json:"kind"`
	FireAt    time.Time      `json:"fireAt"`
	Payload   wake.Payload   `json:"payload"`
	Revision  string         `json:"revision"`
	Delivered bool           `json:"delivered"`
}

func (e osEntry) scheduled() wake.ScheduledAlarm {
	return wake.ScheduledAlarm{
		Handle:    e.Handle,
		Kind:      e.Kind,
		FireAt:    e.FireAt,
		Payload:   e.Payload,
		Revision:  e.Revision,
		Delivered: e.Delivered,
	}
}

// osState is everything the simulated OS remembers between calls.
type osState struct {
	Entries     []osEntry           `json:"entries"`
	Permissions permissions         `json:"permissions"`
	Channels    []string            `json:"channels,omitempty"`
	Launch      *wake.Payload       `json:"launch,omitempty"`
	Opened      []wake.SettingsPage `json:"opened,omitempty"`
}

func (s *osState) clone() *osState {
	out := &osState{
		Entries:     append([]osEntry(nil), s.Entries...),
		Permissions: make(permissions, len(s.Permissions)),
		Channels:    append([]string(nil), s.Channels...),
		Opened:      append([]wake.SettingsPage(nil), s.Opened...),
	}
	for k, v := range s.Permissions {
		out.Permissions[k] = v
	}
	if s.Launch != nil {
		p := *s.Launch
		out.Launch = &p
	}
	return out
}

func (s *osState) find(handle string) int {
	for i, e := range s.Entries {
		if e.Handle == handle {
			return i
		}
	}
	return -1
}

func (s *osState) pending() int {
	n := 0
	for _, e := range s.Entries {
		if !e.Delivered {
			n++
		}
	}
	return n
}

func (s *osState) sortEntries() {
	sort.SliceStable(s.Entries, func(i, j int) bool {
		if !s.Entries[i].FireAt.Equal(s.Entries[j].FireAt) {
			return s.Entries[i].FireAt.Before(s.Entries[j].FireAt)
		}
		return s.Entries[i].Handle < s.Entries[j].Handle
	})
}
