package domain

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StatusLevel represents the severity of a service or event status.
// Levels are totally ordered by their numeric rank.
type StatusLevel int

// Status levels in ascending severity.
const (
	StatusGreen StatusLevel = iota
	StatusYellow
	StatusOrange
	StatusRed
)

var statusNames = [...]string{
	StatusGreen:  "green",
	StatusYellow: "yellow",
	StatusOrange: "orange",
	StatusRed:    "red",
}

var titleCaser = cases.Title(language.English)

// IsValid checks if the status level is one of the known levels.
func (s StatusLevel) IsValid() bool {
	return s >= StatusGreen && s <= StatusRed
}

// IsElevated reports whether the level is more severe than green.
func (s StatusLevel) IsElevated() bool {
	return s > StatusGreen
}

// String returns the lowercase name of the level.
func (s StatusLevel) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("StatusLevel(%d)", int(s))
	}
	return statusNames[s]
}

// Label returns the title-cased name of the level for display.
func (s StatusLevel) Label() string {
	return titleCaser.String(s.String())
}

// MarshalText implements encoding.TextMarshaler.
func (s StatusLevel) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid status level: %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StatusLevel) UnmarshalText(text []byte) error {
	level, err := ParseStatusLevel(string(text))
	if err != nil {
		return err
	}
	*s = level
	return nil
}

// ParseStatusLevel converts a level name to a StatusLevel.
func ParseStatusLevel(name string) (StatusLevel, error) {
	for i, n := range statusNames {
		if n == name {
			return StatusLevel(i), nil
		}
	}
	return StatusGreen, fmt.Errorf("invalid status level: %q", name)
}

// MaxStatus returns the more severe of two levels.
func MaxStatus(a, b StatusLevel) StatusLevel {
	if a > b {
		return a
	}
	return b
}
