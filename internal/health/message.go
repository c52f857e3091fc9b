package health

import (
	"strings"

	"github.com/bissquit/healthboard/internal/domain"
)

var serviceMessages = map[domain.StatusLevel]string{
	domain.StatusGreen:  "This service is operating as expected",
	domain.StatusYellow: "This service is experiencing some issues.",
	domain.StatusOrange: "This service is experiencing major outage.",
	domain.StatusRed:    "This service may be unavailable.",
}

var eventMessages = map[domain.StatusLevel]string{
	domain.StatusGreen:  "operating as expected.",
	domain.StatusYellow: "experiencing some issues.",
	domain.StatusOrange: "experiencing major issues.",
	domain.StatusRed:    "unavailable.",
}

// ServiceMessage returns the canned sentence describing a single service at level.
func ServiceMessage(level domain.StatusLevel) string {
	return serviceMessages[level]
}

// EventMessage describes the named services at level, e.g.
// "Database and Cache are unavailable.". It returns an empty string for an
// unknown level or an empty list of names.
func EventMessage(level domain.StatusLevel, names []string) string {
	suffix, ok := eventMessages[level]
	if !ok || len(names) == 0 {
		return ""
	}
	return joinWithAnd(names) + " " + suffix
}

// joinWithAnd joins names into a subject with a matching verb:
// "A is", "A and B are", "A, B, and C are".
func joinWithAnd(names []string) string {
	switch len(names) {
	case 1:
		return names[0] + " is"
	case 2:
		return names[0] + " and " + names[1] + " are"
	default:
		last := len(names) - 1
		return strings.Join(names[:last], ", ") + ", and " + names[last] + " are"
	}
}
