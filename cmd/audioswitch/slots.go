package main

import (
	"fmt"
	"sort"
	"strings"
)

// Slot is one of the three fixed configuration positions.
type Slot int

const (
	SlotA Slot = iota
	SlotB
	SlotC
)

const numSlots = 3

var allSlots = [numSlots]Slot{SlotA, SlotB, SlotC}

// Key is the lowercase suffix used in settings keys (sink_a, icon_a, ...).
func (s Slot) Key() string {
	switch s {
	case SlotA:
		return "a"
	case SlotB:
		return "b"
	case SlotC:
		return "c"
	default:
		return "?"
	}
}

func (s Slot) String() string { return strings.ToUpper(s.Key()) }

func (s Slot) valid() bool { return s >= SlotA && s <= SlotC }

func (s Slot) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid slot %d", int(s))
	}
	return []byte(s.Key()), nil
}

func (s *Slot) UnmarshalText(b []byte) error {
	v, err := ParseSlot(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSlot accepts "a", "B", "0".."2".
func ParseSlot(v string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "a", "0":
		return SlotA, nil
	case "b", "1":
		return SlotB, nil
	case "c", "2":
		return SlotC, nil
	default:
		return 0, fmt.Errorf("invalid slot %q (must be a, b or c)", v)
	}
}

// IconID names one of the bundled device icons.
type IconID string

const (
	IconSpeaker    IconID = "Speaker"
	IconHeadphones IconID = "Headphones"
	IconAirPods    IconID = "AirPods"
)

var knownIcons = []IconID{IconSpeaker, IconHeadphones, IconAirPods}

// ParseIconID maps a stored icon name to an IconID. Unknown names resolve to
// Speaker, which matches how a missing setting is treated.
func ParseIconID(v string) IconID {
	for _, id := range knownIcons {
		if strings.EqualFold(string(id), strings.TrimSpace(v)) {
			return id
		}
	}
	return IconSpeaker
}

func (id IconID) baseName() string {
	switch id {
	case IconHeadphones:
		return "headphones"
	case IconAirPods:
		return "airpods"
	default:
		return "speaker"
	}
}

// IconColor selects the file variant used for every icon of an instance.
type IconColor string

const (
	IconColorWhite IconColor = "white"
	IconColorBlack IconColor = "black"
)

// ParseIconColor returns white for anything that is not "black".
func ParseIconColor(v string) IconColor {
	if strings.EqualFold(strings.TrimSpace(v), string(IconColorBlack)) {
		return IconColorBlack
	}
	return IconColorWhite
}

// SlotConfig binds a slot to a sink and an icon. An empty SinkName means the
// slot is unconfigured.
type SlotConfig struct {
	SinkName string `json:"sink"`
	Icon     IconID `json:"icon"`
}

func (c SlotConfig) Configured() bool { return strings.TrimSpace(c.SinkName) != "" }

// Settings is everything persisted per action instance.
type Settings struct {
	Slots     [numSlots]SlotConfig `json:"slots"`
	IconColor IconColor            `json:"icon_color"`
}

func DefaultSettings() Settings {
	var s Settings
	for i := range s.Slots {
		s.Slots[i].Icon = IconSpeaker
	}
	s.IconColor = IconColorWhite
	return s
}

// Slot returns the configuration of slot sl.
func (s Settings) Slot(sl Slot) SlotConfig {
	if !sl.valid() {
		return SlotConfig{}
	}
	return s.Slots[sl]
}

func sinkKey(sl Slot) string { return "sink_" + sl.Key() }
func iconKey(sl Slot) string { return "icon_" + sl.Key() }

const iconColorKey = "icon_color"

// ToMap flattens settings into the store's key/value layout.
func (s Settings) ToMap() map[string]any {
	m := make(map[string]any, 2*numSlots+1)
	for _, sl := range allSlots {
		m[sinkKey(sl)] = s.Slots[sl].SinkName
		m[iconKey(sl)] = string(s.Slots[sl].Icon)
	}
	m[iconColorKey] = string(s.IconColor)
	return m
}

// settingsFromLookup rebuilds Settings from a key/value source, applying the
// same defaults a first read would.
func settingsFromLookup(get func(key string) string) Settings {
	s := DefaultSettings()
	for _, sl := range allSlots {
		s.Slots[sl].SinkName = strings.TrimSpace(get(sinkKey(sl)))
		s.Slots[sl].Icon = ParseIconID(get(iconKey(sl)))
	}
	s.IconColor = ParseIconColor(get(iconColorKey))
	return s
}

// SinkSet is the set of sink names currently exposed by the audio server.
type SinkSet map[string]struct{}

func NewSinkSet(names ...string) SinkSet {
	s := make(SinkSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s SinkSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the set sorted, for logging.
func (s SinkSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Ring is the ordered set of usable slots and the position of the current one.
type Ring struct {
	Available []Slot `json:"available"`
	Position  int    `json:"position"`

	// ActiveMatched reports whether the system default sink belongs to one
	// of the available slots. When false, Position is the fallback 0.
	ActiveMatched bool `json:"active_matched"`
}

// ResolveRing computes the usable slots in A,B,C order and locates the slot
// bound to the active sink. ok is false when no slot is usable.
func ResolveRing(slots [numSlots]SlotConfig, avail SinkSet, active string) (Ring, bool) {
	var r Ring
	for _, sl := range allSlots {
		name := strings.TrimSpace(slots[sl].SinkName)
		if name != "" && avail.Has(name) {
			r.Available = append(r.Available, sl)
		}
	}
	if len(r.Available) == 0 {
		return Ring{}, false
	}

	active = strings.TrimSpace(active)
	if active == "" {
		return r, true
	}
	activeSlot := -1
	for _, sl := range allSlots {
		if strings.TrimSpace(slots[sl].SinkName) == active {
			activeSlot = int(sl)
			break
		}
	}
	for pos, sl := range r.Available {
		if int(sl) == activeSlot {
			r.Position = pos
			r.ActiveMatched = true
			break
		}
	}
	return r, true
}

func (r Ring) Len() int { return len(r.Available) }

func (r Ring) at(offset int) Slot {
	n := len(r.Available)
	return r.Available[((r.Position+offset)%n+n)%n]
}

// Current is the slot shown in the center of the icon.
func (r Ring) Current() Slot { return r.at(0) }

// Next is populated with two or more usable slots.
func (r Ring) Next() (Slot, bool) {
	if len(r.Available) < 2 {
		return 0, false
	}
	return r.at(1), true
}

// Prev is populated only with three usable slots. With two, the ring shows
// current and next only.
func (r Ring) Prev() (Slot, bool) {
	if len(r.Available) < 3 {
		return 0, false
	}
	return r.at(-1), true
}

// CycleTarget is the slot a short press switches to. When the active sink is
// not one of the usable slots the first usable slot is chosen.
func (r Ring) CycleTarget() Slot {
	if !r.ActiveMatched {
		return r.Available[0]
	}
	return r.at(1)
}
