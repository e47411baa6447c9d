package stm

import (
	"log/slog"
	"os"
)

// Engine bundles the executor, logger, and trampoline frame budget used by
// one Atomically call-site. It owns none of the core invariants itself —
// the global lock and the id counters stay process-wide (see commit.go,
// tref.go, retry.go) — it only configures how one call path runs.
type Engine struct {
	executor  Executor
	logger    *slog.Logger
	maxFrames int
}

type engineConfig struct {
	executor  Executor
	logger    *slog.Logger
	maxFrames int
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		executor:  goroutineExecutor{},
		logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		maxFrames: DefaultMaxFrames,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

// WithExecutor overrides how completed transactions' wake-up callbacks are
// dispatched. Defaults to one goroutine per submission.
func WithExecutor(e Executor) EngineOption {
	return func(c *engineConfig) { c.executor = e }
}

// WithLogger overrides the structured logger used for commit diagnostics.
func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

// WithMaxFrames overrides the trampoline's frame budget before a chunk
// bounces back to the driver loop. Mostly useful in tests, to force bounces
// on short chains instead of needing a 100,000-deep one.
func WithMaxFrames(n int) EngineOption {
	return func(c *engineConfig) { c.maxFrames = n }
}

// NewEngine builds an Engine from functional options, defaulting to a
// goroutine-per-submit executor, a warn-level stderr text logger, and the
// package's default frame budget.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := defaultEngineConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{executor: cfg.executor, logger: cfg.logger, maxFrames: cfg.maxFrames}
}

var defaultEngine = NewEngine()

// DefaultEngine returns the package-wide zero-config Engine that Atomically
// uses.
func DefaultEngine() *Engine {
	return defaultEngine
}
