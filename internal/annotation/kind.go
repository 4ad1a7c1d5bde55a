package annotation

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-annotate/internal/style"
)

// Kind is the annotation variant. Each kind renders through its own layer type.
type Kind int

const (
	KindSymbol Kind = iota
	KindCircle
	KindLine
	KindFill
)

// Kinds lists every kind in a stable order.
var Kinds = []Kind{KindSymbol, KindCircle, KindLine, KindFill}

func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "symbol"
	case KindCircle:
		return "circle"
	case KindLine:
		return "line"
	case KindFill:
		return "fill"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind parses the String form of a kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// LayerType returns the style layer type that renders this kind.
func (k Kind) LayerType() style.LayerType {
	switch k {
	case KindSymbol:
		return style.LayerSymbol
	case KindCircle:
		return style.LayerCircle
	case KindLine:
		return style.LayerLine
	default:
		return style.LayerFill
	}
}

// SortKeyProperty is the data-driven property fed from the z-index.
func (k Kind) SortKeyProperty() string {
	return k.String() + "-sort-key"
}

// validateGeometry checks that g has the shape this kind renders.
func (k Kind) validateGeometry(g orb.Geometry) error {
	switch k {
	case KindSymbol, KindCircle:
		p, ok := g.(orb.Point)
		if !ok {
			return fmt.Errorf("%s needs a Point, got %T: %w", k, g, ErrInvalidGeometry)
		}
		return validateCoordinate(p)
	case KindLine:
		ls, ok := g.(orb.LineString)
		if !ok {
			return fmt.Errorf("%s needs a LineString, got %T: %w", k, g, ErrInvalidGeometry)
		}
		if len(ls) < 2 {
			return fmt.Errorf("line needs at least 2 points: %w", ErrInvalidGeometry)
		}
		for _, p := range ls {
			if err := validateCoordinate(p); err != nil {
				return err
			}
		}
		return nil
	case KindFill:
		poly, ok := g.(orb.Polygon)
		if !ok {
			return fmt.Errorf("%s needs a Polygon, got %T: %w", k, g, ErrInvalidGeometry)
		}
		if len(poly) == 0 || len(poly[0]) < 3 {
			return fmt.Errorf("fill needs an outer ring of at least 3 points: %w", ErrInvalidGeometry)
		}
		for _, ring := range poly {
			for _, p := range ring {
				if err := validateCoordinate(p); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return fmt.Errorf("unknown kind %v: %w", k, ErrInvalidGeometry)
}

func validateCoordinate(p orb.Point) error {
	if p[1] < -90 || p[1] > 90 {
		return fmt.Errorf("latitude %v out of range: %w", p[1], ErrInvalidGeometry)
	}
	return nil
}

// cloneGeometry deep-copies the geometry shapes annotations carry.
func cloneGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return geom
	case orb.LineString:
		return append(orb.LineString(nil), geom...)
	case orb.Polygon:
		clone := make(orb.Polygon, len(geom))
		for i, ring := range geom {
			clone[i] = append(orb.Ring(nil), ring...)
		}
		return clone
	}
	return g
}
