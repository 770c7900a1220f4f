// Package strategy defines scoring models, which turn price and volume
// history into a 0-100 conviction series, and provides a Registry for
// managing them.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"quantmind/internal/domain"
)

var (
	// ErrUnknownModel is returned when a model id is not registered.
	ErrUnknownModel = errors.New("strategy: unknown model")
	// ErrDuplicateModel is returned when a model id is registered twice.
	ErrDuplicateModel = errors.New("strategy: duplicate model")
)

// ModelID identifies a scoring model, e.g. "master" or "rsi".
type ModelID string

// Descriptor is the public description of a model, used for configuration
// and as the optimizer's iteration order.
type Descriptor struct {
	ID               ModelID `json:"id"`
	DisplayName      string  `json:"displayName"`
	DefaultThreshold float64 `json:"defaultThreshold"`
	Description      string  `json:"description"`
}

// Inputs holds the index-aligned arrays a model scores.
type Inputs struct {
	Closes  []float64
	Highs   []float64
	Lows    []float64
	Volumes []float64
}

// InputsFromSeries derives model inputs from a price series.
func InputsFromSeries(s domain.Series) Inputs {
	return Inputs{
		Closes:  s.Closes(),
		Highs:   s.Highs(),
		Lows:    s.Lows(),
		Volumes: s.Volumes(),
	}
}

// Len returns the number of points in the inputs.
func (in Inputs) Len() int { return len(in.Closes) }

// ScoreFunc maps inputs to a score series of the same length.
type ScoreFunc func(in Inputs) []float64

// Model couples a descriptor with its scoring function.
type Model struct {
	Descriptor
	Score ScoreFunc
}

// Registry holds scoring models keyed by id and remembers registration order.
type Registry struct {
	models map[ModelID]Model
	order  []ModelID
}

// NewRegistry creates an empty model Registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[ModelID]Model),
	}
}

// Register adds a model to the registry. A model without an id or scoring
// function, or one whose id is already registered, is rejected.
func (r *Registry) Register(m Model) error {
	if m.ID == "" || m.Score == nil {
		return fmt.Errorf("registering model %q: id and score function are required", m.ID)
	}
	if _, ok := r.models[m.ID]; ok {
		return fmt.Errorf("registering model %q: %w", m.ID, ErrDuplicateModel)
	}
	r.models[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// building static registries.
func (r *Registry) MustRegister(m Model) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Get retrieves a model by id. The second return value indicates whether
// the model was found.
func (r *Registry) Get(id ModelID) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Score runs the model identified by id over in. Every output value is
// clamped to [0, 100]; undefined values become 0. The result always has the
// same length as in.Closes.
func (r *Registry) Score(id ModelID, in Inputs) ([]float64, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("scoring %q: %w", id, ErrUnknownModel)
	}
	raw := m.Score(in)
	out := make([]float64, in.Len())
	for i := range out {
		if i < len(raw) {
			out[i] = Clamp(raw[i])
		}
	}
	return out, nil
}

// List returns the registered model ids in registration order.
func (r *Registry) List() []ModelID {
	ids := make([]ModelID, len(r.order))
	copy(ids, r.order)
	return ids
}

// Descriptors returns the descriptors of all registered models in
// registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id].Descriptor)
	}
	return out
}

// Clamp limits v to [0, 100]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
