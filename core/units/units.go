// Package units provides the physical quantity engine: a registry of
// dimensions and unit symbols, quantity literal parsing, and unit-aware
// comparison on canonical SI magnitudes.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimension identifies a physical dimension (length, mass, pressure, ...).
type Dimension string

const (
	Length      Dimension = "length"
	Mass        Dimension = "mass"
	Duration    Dimension = "duration"
	Velocity    Dimension = "velocity"
	Temperature Dimension = "temperature"
	Frequency   Dimension = "frequency"
	Angle       Dimension = "angle"
	Area        Dimension = "area"
	Volume      Dimension = "volume"
	Pressure    Dimension = "pressure"
	Energy      Dimension = "energy"
	Power       Dimension = "power"
	Voltage     Dimension = "voltage"
	Current     Dimension = "current"
	Resistance  Dimension = "resistance"
	Data        Dimension = "data"
)

// IsDimension reports whether the token names a registered dimension.
func IsDimension(token string) bool {
	switch Dimension(token) {
	case Length, Mass, Duration, Velocity, Temperature, Frequency, Angle,
		Area, Volume, Pressure, Energy, Power, Voltage, Current, Resistance, Data:
		return true
	default:
		return false
	}
}

// Quantity is a parsed quantity literal: the magnitude as written, the unit
// symbol it was written in, its dimension, and the magnitude converted to the
// dimension's canonical unit. Comparison always operates on Canonical.
type Quantity struct {
	Magnitude float64
	Symbol    string
	Dimension Dimension
	Canonical float64
}

func (q Quantity) String() string {
	return fmt.Sprintf("%v %s", q.Magnitude, q.Symbol)
}

// Convention selects the scaling of SI-prefixed data units (kb, Mb, Gb, ...).
// IEC prefixes (Kib, MiB, ...) are binary under either convention.
type Convention string

const (
	// Decimal scales SI data prefixes by powers of 1000. Default.
	Decimal Convention = "decimal"
	// Binary scales SI data prefixes by powers of 1024, for schemas
	// written with "Gb" meaning 2^30 bits.
	Binary Convention = "binary"
)

var (
	// ErrUnknownUnit is returned when the unit token is not in the registry.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrMalformedQuantity is returned when the literal has no parsable
	// numeric part or no unit token.
	ErrMalformedQuantity = errors.New("malformed quantity literal")
	// ErrDimensionMismatch is returned when two quantities of different
	// dimensions are compared. Schema authoring error, not a data error.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// unitDef maps a symbol to its dimension and affine conversion to the
// canonical unit: canonical = magnitude*factor + offset. Only temperature
// units carry a non-zero offset.
type unitDef struct {
	dim    Dimension
	factor float64
	offset float64
}

// Registry maps unit symbols to dimensions and canonical conversions.
type Registry struct {
	units      map[string]unitDef
	canonical  map[Dimension]string
	convention Convention
}

// NewRegistry builds the standard unit table under the given data-unit
// convention. An empty convention means Decimal.
func NewRegistry(convention Convention) *Registry {
	if convention == "" {
		convention = Decimal
	}
	r := &Registry{
		units:      make(map[string]unitDef),
		canonical:  make(map[Dimension]string),
		convention: convention,
	}
	r.install()
	return r
}

// Convention returns the data-unit scaling convention in effect.
func (r *Registry) Convention() Convention {
	return r.convention
}

// CanonicalSymbol returns the canonical unit symbol of a dimension.
func (r *Registry) CanonicalSymbol(dim Dimension) string {
	return r.canonical[dim]
}

func (r *Registry) add(dim Dimension, symbol string, factor float64) {
	r.units[symbol] = unitDef{dim: dim, factor: factor}
}

func (r *Registry) addAffine(dim Dimension, symbol string, factor, offset float64) {
	r.units[symbol] = unitDef{dim: dim, factor: factor, offset: offset}
}

// Parse parses a quantity literal such as "10 m", "101kPa" or "2 min".
// Whitespace between number and symbol is optional.
func (r *Registry) Parse(text string) (Quantity, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Quantity{}, fmt.Errorf("%w: empty literal", ErrMalformedQuantity)
	}

	// Longest numeric prefix wins, so "1e3 m" parses as 1000 with unit "m"
	// while "1 eV" keeps "eV" for the unit token.
	var (
		magnitude float64
		symbol    string
		found     bool
	)
	for i := len(s); i > 0; i-- {
		f, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
		if err != nil {
			continue
		}
		magnitude = f
		symbol = strings.TrimSpace(s[i:])
		found = true
		break
	}
	if !found {
		return Quantity{}, fmt.Errorf("%w: %q has no numeric part", ErrMalformedQuantity, text)
	}
	if symbol == "" {
		return Quantity{}, fmt.Errorf("%w: %q has no unit token", ErrMalformedQuantity, text)
	}

	def, ok := r.units[symbol]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
	}

	return Quantity{
		Magnitude: magnitude,
		Symbol:    symbol,
		Dimension: def.dim,
		Canonical: magnitude*def.factor + def.offset,
	}, nil
}

// ParseExpected parses a quantity literal and checks its dimension.
func (r *Registry) ParseExpected(text string, dim Dimension) (Quantity, error) {
	q, err := r.Parse(text)
	if err != nil {
		return Quantity{}, err
	}
	if q.Dimension != dim {
		return Quantity{}, fmt.Errorf("%w: %q is %s, expected %s", ErrDimensionMismatch, text, q.Dimension, dim)
	}
	return q, nil
}

// Op is a comparison operator on canonical magnitudes.
type Op string

const (
	OpGT Op = "gt"
	OpGE Op = "ge"
	OpLT Op = "lt"
	OpLE Op = "le"
	OpEQ Op = "eq"
)

// cmpEpsilon absorbs float noise from unit conversion in equality checks.
const cmpEpsilon = 1e-9

// Compare evaluates a op b on canonical magnitudes. Both quantities must
// share a dimension.
func Compare(a, b Quantity, op Op) (bool, error) {
	if a.Dimension != b.Dimension {
		return false, fmt.Errorf("%w: %s vs %s", ErrDimensionMismatch, a.Dimension, b.Dimension)
	}
	switch op {
	case OpGT:
		return a.Canonical > b.Canonical, nil
	case OpGE:
		return a.Canonical >= b.Canonical, nil
	case OpLT:
		return a.Canonical < b.Canonical, nil
	case OpLE:
		return a.Canonical <= b.Canonical, nil
	case OpEQ:
		return math.Abs(a.Canonical-b.Canonical) <= cmpEpsilon*math.Max(1, math.Abs(b.Canonical)), nil
	default:
		return false, fmt.Errorf("unknown comparison op %q", op)
	}
}

// IsMultipleOf reports whether a is an integer multiple of step, on
// canonical magnitudes. Both must share a dimension.
func IsMultipleOf(a, step Quantity) (bool, error) {
	if a.Dimension != step.Dimension {
		return false, fmt.Errorf("%w: %s vs %s", ErrDimensionMismatch, a.Dimension, step.Dimension)
	}
	if step.Canonical == 0 {
		return false, errors.New("multiple_of step is zero")
	}
	ratio := a.Canonical / step.Canonical
	return math.Abs(ratio-math.Round(ratio)) <= cmpEpsilon*math.Max(1, math.Abs(ratio)), nil
}
