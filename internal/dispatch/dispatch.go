package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/oicur0t/ratelog/pkg/lineparser"
	"github.com/oicur0t/ratelog/pkg/models"
)

var (
	// ErrEmptyCommand is returned for a line without tokens
	ErrEmptyCommand = errors.New("empty command line")
	// ErrUnknownCommand is returned when no target handles the command name
	ErrUnknownCommand = errors.New("unknown command")
	// ErrDuplicateCommand is returned when two targets claim the same name
	ErrDuplicateCommand = errors.New("command already registered")
)

// Dispatchable is a command target that can be mounted on a Router
type Dispatchable interface {
	// Commands lists the command names the target answers to
	Commands() []string
	// RunCommand executes tokens, tokens[0] being the command name
	RunCommand(tokens []string) bool
}

// Executor is a Dispatchable that also returns output rows
type Executor interface {
	Dispatchable
	Execute(tokens []string) (models.Result, bool)
}

// Outcome describes a dispatched command
type Outcome struct {
	Command string
	OK      bool
	Lines   []string
}

// Router maps command names to targets
type Router struct {
	mu      sync.RWMutex
	targets map[string]Dispatchable
	logger  *zap.Logger
}

// NewRouter creates an empty router
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		targets: make(map[string]Dispatchable),
		logger:  logger,
	}
}

// Register mounts target under every name it advertises.
// Nothing is registered if any name is already taken.
func (r *Router) Register(target Dispatchable) error {
	names := target.Commands()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, exists := r.targets[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
		}
	}
	for _, name := range names {
		r.targets[name] = target
	}

	r.logger.Debug("Registered command target", zap.Strings("commands", names))
	return nil
}

// Commands returns every registered command name, sorted
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Dispatch tokenizes raw and routes it by its first token
func (r *Router) Dispatch(raw string) (Outcome, error) {
	p := lineparser.NewParser(raw)
	if p.Len() == 0 {
		return Outcome{}, ErrEmptyCommand
	}

	r.logger.Debug("Dispatching command line",
		zap.String("command", p.Command()),
		zap.Int("args", len(p.Args())))

	return r.route(p.Command(), p.Tokens())
}

// DispatchTokens routes an already tokenized command. Tokens are passed to
// the target unchanged; only the command name must be non-empty.
func (r *Router) DispatchTokens(tokens []string) (Outcome, error) {
	if len(tokens) == 0 || tokens[0] == "" {
		return Outcome{}, ErrEmptyCommand
	}

	return r.route(tokens[0], tokens)
}

func (r *Router) route(name string, tokens []string) (Outcome, error) {

	r.mu.RLock()
	target, ok := r.targets[name]
	r.mu.RUnlock()

	if !ok {
		return Outcome{Command: name}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if exec, ok := target.(Executor); ok {
		res, success := exec.Execute(tokens)
		return Outcome{Command: name, OK: success, Lines: res.Lines}, nil
	}

	return Outcome{Command: name, OK: target.RunCommand(tokens)}, nil
}
