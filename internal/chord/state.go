package chord

import (
	"fmt"
	"sort"
	"time"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

// Mode is the chord phase.
type Mode int

const (
	// Waiting means only the leader key is registered.
	Waiting Mode = iota
	// AwaitingSecondKey means the keys of the active set are registered and
	// the machine times out at PressedAt + timeout.
	AwaitingSecondKey
)

func (m Mode) String() string {
	switch m {
	case Waiting:
		return "waiting"
	case AwaitingSecondKey:
		return "awaiting-second-key"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SetName selects one of the two application sets.
type SetName int

const (
	Primary SetName = iota
	Secondary
)

func (s SetName) String() string {
	if s == Secondary {
		return "secondary"
	}
	return "primary"
}

func (s SetName) other() SetName {
	if s == Primary {
		return Secondary
	}
	return Primary
}

// Binding ties a second key to a launch target.
type Binding struct {
	Label  string
	Spec   keyspec.Spec
	Target string
}

// AppSet is the bindings of one chord level, ordered by label.
type AppSet []Binding

// State is a snapshot of the machine. Registered is empty while Waiting and
// holds exactly the ids registered for Active while AwaitingSecondKey.
type State struct {
	Mode       Mode
	PressedAt  time.Time
	Active     SetName
	Registered map[hotkeys.ID]Binding
}

// RegisteredIDs returns the ids of Registered in ascending order.
func (s State) RegisteredIDs() []hotkeys.ID {
	ids := make([]hotkeys.ID, 0, len(s.Registered))
	for id := range s.Registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s State) clone() State {
	out := s
	out.Registered = make(map[hotkeys.ID]Binding, len(s.Registered))
	for id, b := range s.Registered {
		out.Registered[id] = b
	}
	return out
}

// ControlKind tells the host how to schedule its next wake-up.
type ControlKind int

const (
	WaitIndefinitely ControlKind = iota
	WaitUntil
)

func (k ControlKind) String() string {
	if k == WaitUntil {
		return "wait-until"
	}
	return "wait-indefinitely"
}

// Control is returned after every handled event. Deadline is only set for
// WaitUntil.
type Control struct {
	Kind     ControlKind
	Deadline time.Time
}

// Settings is the input of Apply: labels as typed in the config file.
type Settings struct {
	Leader    string
	Primary   map[string]string
	Secondary map[string]string
	Timeout   time.Duration
}

// table is the derived, validated form of Settings.
type table struct {
	leader  keyspec.Spec
	sets    [2]AppSet
	timeout time.Duration
}

func (t table) hasSecondary() bool {
	return len(t.sets[Secondary]) > 0
}
