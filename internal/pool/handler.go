package pool

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one task. The context carries the caller's cancellation
// signal and is cancelled by the pool when the task times out, so handlers
// that can stop early should watch ctx.Done. The progress callback accepts
// a 0-100 value and may be called any number of times, including zero.
type Handler func(ctx context.Context, payload any, progress func(int)) (any, error)

// HandlerRegistry maps task type tags to the Handler a worker runs for
// them. Registration is expected at startup, before tasks are submitted;
// submissions for unregistered types are rejected at admission.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task type. Registering the same type twice
// is an error; handlers are not replaceable once bound.
func (r *HandlerRegistry) Register(taskType string, h Handler) error {
	if taskType == "" {
		return fmt.Errorf("pool: task type must not be empty")
	}
	if h == nil {
		return fmt.Errorf("pool: handler for %q must not be nil", taskType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("pool: handler for %q already registered", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

// Get returns the handler bound to a task type.
func (r *HandlerRegistry) Get(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Has reports whether a handler is bound to the task type.
func (r *HandlerRegistry) Has(taskType string) bool {
	_, ok := r.Get(taskType)
	return ok
}

// Types returns the registered task types, for diagnostics.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
