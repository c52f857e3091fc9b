// Package checks runs health check backends and reports their outcome as
// service status.
package checks

import (
	"context"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
)

// Backend checks one monitored service.
type Backend interface {
	// Name is the display name of the checked service.
	Name() string
	// Slug identifies the service the result is reported against.
	Slug() string
	// Critical backends make the checks endpoint fail.
	Critical() bool
	Check(ctx context.Context) error
}

// Result is the outcome of one backend run.
type Result struct {
	Slug      string             `json:"slug"`
	Name      string             `json:"name"`
	Critical  bool               `json:"critical"`
	Status    domain.StatusLevel `json:"status"`
	Message   string             `json:"message"`
	Duration  float64            `json:"duration_seconds"`
	CheckedAt time.Time          `json:"checked_at"`
}

// Passed reports whether the check succeeded.
func (r Result) Passed() bool {
	return r.Status == domain.StatusGreen
}

const workingMessage = "Working"

// Run executes a backend with a timeout and classifies its outcome.
func Run(ctx context.Context, b Backend, timeout time.Duration) Result {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := b.Check(checkCtx)
	duration := time.Since(start)

	result := Result{
		Slug:      b.Slug(),
		Name:      b.Name(),
		Critical:  b.Critical(),
		Status:    domain.StatusGreen,
		Message:   workingMessage,
		Duration:  duration.Seconds(),
		CheckedAt: start.UTC(),
	}
	recordCheckDuration(result.Slug, duration)

	if err != nil {
		checkErr := classify(err)
		result.Status = checkErr.Kind.Status()
		result.Message = checkErr.Message
		recordCheckFailure(result.Slug, checkErr.Kind)
	}

	return result
}

// base holds the identity shared by all backends.
type base struct {
	name     string
	slug     string
	critical bool
}

func (b base) Name() string   { return b.name }
func (b base) Slug() string   { return b.slug }
func (b base) Critical() bool { return b.critical }
