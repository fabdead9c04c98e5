package sedmodel

import (
	"fmt"
	"sort"

	"github.com/pyaritra/prospector/internal/model"
)

// ParamStore maps parameter names to their current numeric values. It is
// rebuilt wholesale on every SetParameters call, never mutated in place.
type ParamStore map[string][]float64

// Descriptor is the validated mapping between the flat theta vector and
// named parameter arrays. Construction checks the ranges once; after that
// Set and Flatten cannot hit an overlap or a gap.
type Descriptor struct {
	specs []model.ParamSpec
	total int
}

// NewDescriptor validates specs eagerly: offsets >= 0, lengths > 0,
// ranges non-overlapping and jointly covering [0, total) with no gaps.
func NewDescriptor(specs []model.ParamSpec) (*Descriptor, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no parameters", ErrInvalidDescriptor)
	}

	ordered := append([]model.ParamSpec(nil), specs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	seen := make(map[string]struct{}, len(ordered))
	next := 0
	for _, sp := range ordered {
		if sp.Name == "" {
			return nil, fmt.Errorf("%w: unnamed parameter at offset %d", ErrInvalidDescriptor, sp.Offset)
		}
		if _, dup := seen[sp.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %s", ErrInvalidDescriptor, sp.Name)
		}
		seen[sp.Name] = struct{}{}
		if sp.Offset < 0 || sp.Length <= 0 {
			return nil, fmt.Errorf("%w: parameter %s has offset=%d length=%d", ErrInvalidDescriptor, sp.Name, sp.Offset, sp.Length)
		}
		if sp.Offset < next {
			return nil, fmt.Errorf("%w: parameter %s overlaps range ending at %d", ErrInvalidDescriptor, sp.Name, next)
		}
		if sp.Offset > next {
			return nil, fmt.Errorf("%w: gap before parameter %s at offset %d", ErrInvalidDescriptor, sp.Name, sp.Offset)
		}
		next = sp.Offset + sp.Length
	}

	return &Descriptor{specs: ordered, total: next}, nil
}

// Total is the length a theta vector must have.
func (d *Descriptor) Total() int { return d.total }

// Specs returns the parameter ranges in offset order.
func (d *Descriptor) Specs() []model.ParamSpec {
	return append([]model.ParamSpec(nil), d.specs...)
}

// Names returns the parameter names in offset order.
func (d *Descriptor) Names() []string {
	names := make([]string, 0, len(d.specs))
	for _, sp := range d.specs {
		names = append(names, sp.Name)
	}
	return names
}

// Only reports whether the descriptor contains exactly one parameter
// with the given name.
func (d *Descriptor) Only(name string) bool {
	return len(d.specs) == 1 && d.specs[0].Name == name
}

// Set extracts each parameter's sub-range of theta into a fresh store.
// Sub-slices are copied, so later mutation of theta cannot corrupt the
// stored parameters.
func (d *Descriptor) Set(theta []float64) (ParamStore, error) {
	if len(theta) != d.total {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(theta), d.total)
	}

	store := make(ParamStore, len(d.specs)+1)
	for _, sp := range d.specs {
		store[sp.Name] = append([]float64(nil), theta[sp.Offset:sp.Offset+sp.Length]...)
	}
	return store, nil
}

// Flatten is the inverse of Set: it reassembles a theta vector from a
// store, ignoring store entries outside the descriptor.
func (d *Descriptor) Flatten(store ParamStore) ([]float64, error) {
	theta := make([]float64, d.total)
	for _, sp := range d.specs {
		values, ok := store[sp.Name]
		if !ok {
			return nil, fmt.Errorf("%w: store is missing parameter %s", ErrShapeMismatch, sp.Name)
		}
		if len(values) != sp.Length {
			return nil, fmt.Errorf("%w: parameter %s has %d values, want %d", ErrShapeMismatch, sp.Name, len(values), sp.Length)
		}
		copy(theta[sp.Offset:sp.Offset+sp.Length], values)
	}
	return theta, nil
}
