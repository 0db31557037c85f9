package stage

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Factory builds one stage from its parameters.
type Factory func(params Params, logger *zap.Logger) (Stage, error)

// Registry maps stage type names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given stage type.
func (r *Registry) Register(typeName string, factory Factory) error {
	if typeName == "" {
		return fmt.Errorf("%w: empty stage type", ErrInvalidConfig)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %s", ErrInvalidConfig, typeName)
	}
	if _, exists := r.factories[typeName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStageType, typeName)
	}
	r.factories[typeName] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(typeName string, factory Factory) {
	if err := r.Register(typeName, factory); err != nil {
		panic("stage registry: " + err.Error())
	}
}

// Lookup returns the factory for the given stage type, or nil.
func (r *Registry) Lookup(typeName string) Factory {
	return r.factories[typeName]
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build looks up typeName and runs its factory. Factory failures are
// reported as ErrInvalidConfig.
func (r *Registry) Build(typeName string, params Params, logger *zap.Logger) (Stage, error) {
	factory := r.Lookup(typeName)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStageType, typeName)
	}
	if params == nil {
		params = Params{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := factory(params, logger)
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, typeName, err)
	}
	return s, nil
}
