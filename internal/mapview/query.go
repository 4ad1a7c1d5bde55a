package mapview

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/style"
)

const (
	// lineSlop widens thin lines so they can be hit with a finger.
	lineSlop = 4.0
	// iconHalfExtent is half the side of a symbol's hit box at icon-size 1.
	iconHalfExtent = 16.0
)

// QueryRenderedFeatures returns the features rendered at pt, topmost first.
// With no layer ids every layer is queried. Within a layer a higher
// <type>-sort-key draws on top, then later features in the source.
func (m *Map) QueryRenderedFeatures(pt projection.ScreenPoint, layerIDs ...string) []*geojson.Feature {
	if m.style == nil || !m.style.FullyLoaded() {
		return nil
	}

	wanted := make(map[string]bool, len(layerIDs))
	for _, id := range layerIDs {
		wanted[id] = true
	}

	var hits []*geojson.Feature
	layers := m.style.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if len(wanted) > 0 && !wanted[layer.ID()] {
			continue
		}
		if v, _ := layer.Property("visibility"); v == "none" {
			continue
		}
		src, ok := m.style.Source(layer.SourceID())
		if !ok {
			continue
		}
		sortKey := string(layer.Type()) + "-sort-key"
		var layerHits []candidate
		for j, f := range src.FeatureCollection().Features {
			if !style.Matches(layer.Filter(), f.Properties) {
				continue
			}
			if m.hit(layer, f, pt) {
				key := number(layer.Resolve(sortKey, f.Properties, 0.0))
				layerHits = append(layerHits, candidate{feature: f, key: key, index: j})
			}
		}
		sort.Slice(layerHits, func(a, b int) bool {
			if layerHits[a].key != layerHits[b].key {
				return layerHits[a].key > layerHits[b].key
			}
			return layerHits[a].index > layerHits[b].index
		})
		for _, c := range layerHits {
			hits = append(hits, c.feature)
		}
	}
	return hits
}

// candidate is a hit feature with its draw order inside one layer.
type candidate struct {
	feature *geojson.Feature
	key     float64
	index   int
}

func (m *Map) hit(layer *style.Layer, f *geojson.Feature, pt projection.ScreenPoint) bool {
	props := map[string]any(f.Properties)
	target := orb.Point{pt.X, pt.Y}

	switch layer.Type() {
	case style.LayerCircle:
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return false
		}
		radius := number(layer.Resolve("circle-radius", props, 5.0))
		stroke := number(layer.Resolve("circle-stroke-width", props, 0.0))
		return planar.Distance(m.screen(p), target) <= radius+stroke

	case style.LayerSymbol:
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return false
		}
		half := iconHalfExtent * number(layer.Resolve("icon-size", props, 1.0))
		s := m.screen(p)
		return math.Abs(s[0]-pt.X) <= half && math.Abs(s[1]-pt.Y) <= half

	case style.LayerLine:
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			return false
		}
		width := number(layer.Resolve("line-width", props, 1.0))
		return planar.DistanceFrom(m.screenLine(ls), target) <= width/2+lineSlop

	case style.LayerFill:
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return false
		}
		screenPoly := make(orb.Polygon, len(poly))
		for i, ring := range poly {
			screenPoly[i] = orb.Ring(m.screenLine(orb.LineString(ring)))
		}
		return planar.PolygonContains(screenPoly, target)
	}
	return false
}

func (m *Map) screen(p orb.Point) orb.Point {
	s := m.viewport.ToScreenLocation(p)
	return orb.Point{s.X, s.Y}
}

func (m *Map) screenLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = m.screen(p)
	}
	return out
}

func number(v any) float64 {
	f, _ := style.Number(v)
	return f
}
