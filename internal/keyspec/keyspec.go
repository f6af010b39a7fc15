// Package keyspec turns human-typed key labels into the symbolic key names
// understood by the hotkey facility.
package keyspec

import "strings"

const (
	letterPrefix = "Key"
	digitPrefix  = "Digit"
)

// Spec is a modifier-less symbolic key name such as "KeyA", "Digit5",
// "Space" or "F12".
type Spec string

// String returns the symbolic name.
func (s Spec) String() string { return string(s) }

// Normalize maps a configuration label to a Spec.
//
// A single ASCII letter becomes the letter key for its uppercase form
// ("a" -> "KeyA"), a single ASCII digit becomes the digit key
// ("5" -> "Digit5"). Every other label is returned unchanged and is assumed
// to already be a symbolic key name. Normalize never fails; unknown names
// are rejected later by the facility that resolves them.
func Normalize(label string) Spec {
	if len(label) != 1 {
		return Spec(label)
	}
	ch := label[0]
	switch {
	case ch >= 'a' && ch <= 'z':
		return Spec(letterPrefix + string(ch-'a'+'A'))
	case ch >= 'A' && ch <= 'Z':
		return Spec(letterPrefix + string(ch))
	case ch >= '0' && ch <= '9':
		return Spec(digitPrefix + string(ch))
	}
	return Spec(label)
}

// Fold returns the lookup form of s used by facility key tables.
// Symbolic names are matched case-insensitively so "space" and "Space"
// resolve to the same key.
func (s Spec) Fold() string {
	return strings.ToLower(strings.TrimSpace(string(s)))
}

// Equal reports whether s and other name the same key.
func (s Spec) Equal(other Spec) bool {
	return s.Fold() == other.Fold()
}

// IsLetter reports whether s is one of the letter keys Normalize produces.
func (s Spec) IsLetter() bool {
	name := string(s)
	return len(name) == len(letterPrefix)+1 &&
		strings.HasPrefix(name, letterPrefix) &&
		name[len(letterPrefix)] >= 'A' && name[len(letterPrefix)] <= 'Z'
}

// IsDigit reports whether s is one of the digit keys Normalize produces.
func (s Spec) IsDigit() bool {
	name := string(s)
	return len(name) == len(digitPrefix)+1 &&
		strings.HasPrefix(name, digitPrefix) &&
		name[len(digitPrefix)] >= '0' && name[len(digitPrefix)] <= '9'
}
