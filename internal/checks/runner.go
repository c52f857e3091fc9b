package checks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
)

// Reporter records a check outcome against a service.
type Reporter interface {
	ReportCheckResult(ctx context.Context, slug string, status domain.StatusLevel, message string) error
}

// RunnerConfig contains runner configuration.
type RunnerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultRunnerConfig returns default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval: time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Runner executes all backends concurrently, keeps the latest results and
// reports each outcome as service status.
type Runner struct {
	config   RunnerConfig
	backends []Backend
	reporter Reporter

	mu      sync.RWMutex
	results []Result

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a new check runner. reporter may be nil.
func NewRunner(config RunnerConfig, reporter Reporter, backends ...Backend) *Runner {
	return &Runner{
		config:   config,
		backends: backends,
		reporter: reporter,
		stopCh:   make(chan struct{}),
	}
}

// Backends returns the configured backends.
func (r *Runner) Backends() []Backend {
	return r.backends
}

// Start runs all checks periodically until Stop is called.
func (r *Runner) Start(ctx context.Context) {
	slog.Info("starting health check runner",
		"backends", len(r.backends),
		"interval", r.config.Interval,
		"timeout", r.config.Timeout,
	)

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop gracefully stops the runner.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	slog.Info("health check runner stopped")
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes every backend once and returns results in backend order.
func (r *Runner) RunOnce(ctx context.Context) []Result {
	results := make([]Result, len(r.backends))

	var wg sync.WaitGroup
	for i, b := range r.backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()
			results[i] = Run(ctx, b, r.config.Timeout)
		}(i, b)
	}
	wg.Wait()

	r.mu.Lock()
	r.results = results
	r.mu.Unlock()

	r.report(ctx, results)
	return results
}

func (r *Runner) report(ctx context.Context, results []Result) {
	for _, res := range results {
		if !res.Passed() {
			slog.Warn("health check failed",
				"check", res.Slug,
				"status", res.Status.String(),
				"message", res.Message,
			)
		}

		if r.reporter == nil {
			continue
		}

		message := ""
		if !res.Passed() {
			message = res.Message
		}
		if err := r.reporter.ReportCheckResult(ctx, res.Slug, res.Status, message); err != nil {
			slog.Error("failed to report check result", "check", res.Slug, "error", err)
		}
	}
}

// Results returns the latest results, or nil before the first run.
func (r *Runner) Results() []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Result(nil), r.results...)
}

// Healthy reports whether every critical backend passed.
func Healthy(results []Result) bool {
	for _, res := range results {
		if res.Critical && !res.Passed() {
			return false
		}
	}
	return true
}
