package assessment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Assessor is the universal contract every analysis source must implement.
// Implementations must respect context cancellation and be safe for
// concurrent use from multiple goroutines.
type Assessor interface {
	// Kind returns the kind of analysis this assessor performs.
	Kind() Kind

	// Assess runs one analysis against the target and returns a terminal
	// outcome. Returning an error means the attempt failed; the coordinator
	// owns retries, the assessor must not retry internally.
	Assess(ctx context.Context, subjectID, target string, sessionID uuid.UUID, industry string) (Outcome, error)
}

// Registry maintains the assessors available to the coordinator, one per kind.
type Registry struct {
	mu        sync.RWMutex
	assessors map[Kind]Assessor
}

// NewRegistry creates an empty assessor registry.
func NewRegistry() *Registry {
	return &Registry{assessors: make(map[Kind]Assessor)}
}

// Register adds an assessor. Registering a second assessor for the same kind
// is a wiring mistake and returns an error.
func (r *Registry) Register(a Assessor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind := a.Kind()
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if _, exists := r.assessors[kind]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, kind)
	}
	r.assessors[kind] = a
	return nil
}

// Get retrieves the assessor for a kind.
func (r *Registry) Get(kind Kind) (Assessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assessors[kind]
	return a, ok
}

// Kinds returns the kinds with a registered assessor.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.assessors))
	for k := range r.assessors {
		kinds = append(kinds, k)
	}
	return kinds
}
