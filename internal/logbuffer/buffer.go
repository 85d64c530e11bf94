// Package logbuffer implements an in-memory, rate-limited buffer of log lines
// that can also be driven by "list" and "log" commands.
//
// Every public method holds a single mutex for its whole duration, covering the
// stored lines, the admission budget and the shared render area together.
// Throttled lines are dropped without any signal to the caller.
package logbuffer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oicur0t/ratelog/internal/ratelimit"
	"github.com/oicur0t/ratelog/pkg/clock"
	"github.com/oicur0t/ratelog/pkg/models"
)

// Command names understood by the buffer
const (
	CommandList = "list"
	CommandLog  = "log"
)

const (
	// DefaultRateLimit is the number of lines admitted per window
	DefaultRateLimit = ratelimit.DefaultLimit
	// DefaultRenderLimit is the size in bytes of the render area
	DefaultRenderLimit = 500
)

// Config holds buffer settings
type Config struct {
	RateLimit     int              `mapstructure:"rate_limit" yaml:"rate_limit"`
	Window        time.Duration    `mapstructure:"window" yaml:"window"`
	Policy        ratelimit.Policy `mapstructure:"policy" yaml:"policy"`
	CommandBypass bool             `mapstructure:"command_bypass" yaml:"command_bypass"` // "log" commands skip admission
	RenderLimit   int              `mapstructure:"render_limit" yaml:"render_limit"`
}

// DefaultConfig returns the buffer defaults
func DefaultConfig() Config {
	return Config{
		RateLimit:   DefaultRateLimit,
		Window:      ratelimit.DefaultWindow,
		Policy:      ratelimit.PolicyWindow,
		RenderLimit: DefaultRenderLimit,
	}
}

// Option customizes a Buffer
type Option func(*Buffer)

// WithClock sets the time source read by the admission policy
func WithClock(c clock.Clock) Option {
	return func(b *Buffer) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Buffer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOutput sets where RunCommand prints "list" rows
func WithOutput(w io.Writer) Option {
	return func(b *Buffer) {
		if w != nil {
			b.out = w
		}
	}
}

// Buffer is an ordered, rate-limited store of rendered log lines
type Buffer struct {
	mu      sync.Mutex
	lines   []string
	limiter ratelimit.Limiter
	render  *scratch
	stats   models.BufferStats
	dropRun uint64 // drops since the last admitted line

	cfg    Config
	clock  clock.Clock
	logger *zap.Logger

	outMu sync.Mutex
	out   io.Writer
}

// New creates a buffer. Zero-valued config fields take their defaults.
func New(cfg Config, opts ...Option) (*Buffer, error) {
	def := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.RenderLimit <= 0 {
		cfg.RenderLimit = def.RenderLimit
	}

	b := &Buffer{
		lines:  make([]string, 0, 64),
		render: newScratch(cfg.RenderLimit),
		cfg:    cfg,
		clock:  clock.System,
		logger: zap.NewNop(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(b)
	}

	limiter, err := ratelimit.New(cfg.Policy, b.clock, cfg.RateLimit, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}
	b.limiter = limiter

	return b, nil
}

// Config returns the effective configuration
func (b *Buffer) Config() Config {
	return b.cfg
}

// Add renders format with args and stores the line as is
func (b *Buffer) Add(format string, args ...any) {
	b.emit("", format, args)
}

// Internal stores a line prefixed with the module preamble
func (b *Buffer) Internal(module, format string, args ...any) {
	b.emit(preamble(module), format, args)
}

// Sketch stores a line prefixed with the module preamble
func (b *Buffer) Sketch(module, format string, args ...any) {
	b.SketchV(module, format, args)
}

// SketchV is Sketch with an already collected argument list
func (b *Buffer) SketchV(module, format string, args []any) {
	b.emit(preamble(module), format, args)
}

func preamble(module string) string {
	return "[" + module + "] "
}

func (b *Buffer) emit(prefix, format string, args []any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.admit() {
		return
	}

	b.lines = append(b.lines, prefix+b.render.renderf(format, args))
}

// admit must be called with mu held
func (b *Buffer) admit() bool {
	if !b.limiter.Allow() {
		b.stats.Dropped++
		b.dropRun++
		return false
	}

	b.stats.Admitted++
	b.reportDrops()

	return true
}

// reportDrops logs and clears the pending drop run. It must be called with mu held.
func (b *Buffer) reportDrops() {
	if b.dropRun == 0 {
		return
	}
	b.logger.Warn("Log output was throttled",
		zap.Uint64("dropped", b.dropRun),
		zap.Int("rate_limit", b.cfg.RateLimit),
		zap.Duration("window", b.cfg.Window))
	b.dropRun = 0
}

// ResetBudget restores the full admission budget immediately and reports any
// lines dropped since the last admitted one. Stored lines are kept.
func (b *Buffer) ResetBudget() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reportDrops()
	b.limiter.Reset()
}

// List returns the stored lines in insertion order. With args, only lines
// containing the args joined by a single space are returned.
func (b *Buffer) List(args []string) []string {
	filter := strings.Join(args, " ")

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.lines))
	for _, line := range b.lines {
		if filter == "" || strings.Contains(line, filter) {
			out = append(out, line)
		}
	}

	return out
}

// Log joins args with a single space and stores the result.
// It returns false without storing anything when args is empty.
func (b *Buffer) Log(args []string) bool {
	if len(args) == 0 {
		return false
	}
	text := strings.Join(args, " ")

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.CommandBypass {
		b.stats.Bypassed++
	} else if !b.admit() {
		return true
	}

	b.lines = append(b.lines, b.render.render(text))

	return true
}

// Clear removes every stored line. The admission budget is left untouched.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = make([]string, 0, 64)
}

// LinesContain counts the stored lines containing sub
func (b *Buffer) LinesContain(sub string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, line := range b.lines {
		if strings.Contains(line, sub) {
			n++
		}
	}

	return n
}

// Lines returns a copy of every stored line
func (b *Buffer) Lines() []string {
	return b.List(nil)
}

// Len returns the number of stored lines
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.lines)
}

// Stats returns the current counters
func (b *Buffer) Stats() models.BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.Stored = len(b.lines)
	s.Remaining = b.limiter.Remaining()

	return s
}

// Commands returns the command names the buffer answers to
func (b *Buffer) Commands() []string {
	return []string{CommandList, CommandLog}
}

// Execute runs the command named by tokens[0] with the remaining tokens as
// arguments. Unknown or missing command names return false and change nothing.
func (b *Buffer) Execute(tokens []string) (models.Result, bool) {
	if len(tokens) == 0 {
		return models.Result{}, false
	}

	cmd, args := tokens[0], tokens[1:]
	switch cmd {
	case CommandList:
		return models.Result{Command: cmd, Lines: b.List(args)}, true
	case CommandLog:
		return models.Result{Command: cmd}, b.Log(args)
	default:
		return models.Result{}, false
	}
}

// RunCommand executes tokens and prints any "list" rows to the configured output
func (b *Buffer) RunCommand(tokens []string) bool {
	res, ok := b.Execute(tokens)
	if !ok || len(res.Lines) == 0 {
		return ok
	}

	b.outMu.Lock()
	defer b.outMu.Unlock()

	for _, line := range res.Lines {
		fmt.Fprintln(b.out, line)
	}

	return true
}
