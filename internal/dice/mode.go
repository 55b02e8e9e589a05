package dice

import (
	"errors"
	"fmt"
	"strings"
)

// ExplosionMode selects which faces of a d10 trigger an extra roll.
type ExplosionMode string

const (
	// None never explodes.
	None ExplosionMode = "unskilled"
	// ExplodeOnMax explodes on a 10.
	ExplodeOnMax ExplosionMode = "skilled"
	// ExplodeOnTopTwo explodes on a 9 or a 10.
	ExplodeOnTopTwo ExplosionMode = "mastery"
)

// Modes lists every explosion mode in enumeration order.
var Modes = []ExplosionMode{None, ExplodeOnMax, ExplodeOnTopTwo}

var ErrUnknownMode = errors.New("unknown explosion mode")

// ShouldExplode reports whether face triggers another roll under mode.
func ShouldExplode(face int, mode ExplosionMode) bool {
	switch mode {
	case ExplodeOnMax:
		return face == Faces
	case ExplodeOnTopTwo:
		return face >= Faces-1
	default:
		return false
	}
}

// Letter is the one-letter tag used in compact labels.
func (m ExplosionMode) Letter() string {
	switch m {
	case None:
		return "u"
	case ExplodeOnMax:
		return "s"
	case ExplodeOnTopTwo:
		return "m"
	}
	return "?"
}

func (m ExplosionMode) Valid() bool {
	return m == None || m == ExplodeOnMax || m == ExplodeOnTopTwo
}

// ParseExplosionMode accepts the serialized names ("unskilled", "skilled",
// "mastery") as well as their one-letter tags.
func ParseExplosionMode(s string) (ExplosionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unskilled", "u", "none":
		return None, nil
	case "skilled", "s", "", "max":
		return ExplodeOnMax, nil
	case "mastery", "m", "top_two":
		return ExplodeOnTopTwo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
