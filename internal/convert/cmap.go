// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pdiddy/docprep/internal/backend"
	"github.com/pdiddy/docprep/pkg/types"
)

// DefaultConversions returns a fresh copy of the default table: legacy and
// OpenDocument formats mapped to the OOXML format that replaces them.
func DefaultConversions() map[types.DocType]types.DocType {
	return map[types.DocType]types.DocType{
		types.TypeDOC: types.TypeDOCX,
		types.TypeXLS: types.TypeXLSX,
		types.TypePPT: types.TypePPTX,
		types.TypeRTF: types.TypeDOCX,
		types.TypeODT: types.TypeDOCX,
		types.TypeODS: types.TypeXLSX,
		types.TypeODP: types.TypePPTX,
	}
}

// ConversionMap is an immutable source→target table keyed by detected
// type. The zero value converts nothing.
type ConversionMap struct {
	m map[types.DocType]types.DocType
}

// NewConversionMap validates and copies m. Every source and target must be
// a known type, a target must be something the backends can produce, a
// type may not map to itself, and a target may not itself be a source.
func NewConversionMap(m map[types.DocType]types.DocType) (ConversionMap, error) {
	for _, from := range slices.Sorted(maps.Keys(m)) {
		to := m[from]
		switch {
		case !from.Valid():
			return ConversionMap{}, fmt.Errorf("%w: unknown source type %q", ErrInvalidArgument, from)
		case !to.Valid():
			return ConversionMap{}, fmt.Errorf("%w: unknown target type %q for %s", ErrInvalidArgument, to, from)
		case from == to:
			return ConversionMap{}, fmt.Errorf("%w: %s maps to itself", ErrInvalidArgument, from)
		case !backend.Supports(to):
			return ConversionMap{}, fmt.Errorf("%w: target %s for %s cannot be produced", ErrInvalidArgument, to, from)
		}
		if _, chained := m[to]; chained {
			return ConversionMap{}, fmt.Errorf("%w: %s→%s chains into another conversion", ErrInvalidArgument, from, to)
		}
	}
	return ConversionMap{m: maps.Clone(m)}, nil
}

// DefaultConversionMap returns the map built from DefaultConversions.
func DefaultConversionMap() ConversionMap {
	cm, err := NewConversionMap(DefaultConversions())
	if err != nil {
		panic(err)
	}
	return cm
}

// Target returns the type t converts to, if any.
func (cm ConversionMap) Target(t types.DocType) (types.DocType, bool) {
	to, ok := cm.m[t]
	return to, ok
}

// Len returns the number of mappings.
func (cm ConversionMap) Len() int { return len(cm.m) }

// Sources returns the convertible types in sorted order.
func (cm ConversionMap) Sources() []types.DocType {
	return slices.Sorted(maps.Keys(cm.m))
}
