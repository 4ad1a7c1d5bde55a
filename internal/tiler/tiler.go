// Package tiler encodes annotation sources as Mapbox Vector Tiles.
//
// Every GeoJSON source of a session becomes one MVT layer named after the
// source id, so a renderer can style it with the same layer definitions the
// session's style carries.
package tiler

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// MaxZoom is the deepest zoom level tiles are generated for.
const MaxZoom = 14

// EncodeTile renders the features of every source that intersect tile into a
// gzipped MVT. It returns nil when no feature survives clipping.
func EncodeTile(sources map[string]*geojson.FeatureCollection, tile maptile.Tile) ([]byte, error) {
	if tile.Z > MaxZoom {
		return nil, fmt.Errorf("zoom %d exceeds max zoom %d", tile.Z, MaxZoom)
	}

	bound := tile.Bound()
	var layers mvt.Layers
	for _, id := range sortedIDs(sources) {
		layer := encodeLayer(id, sources[id], tile, bound)
		if layer != nil {
			layers = append(layers, layer)
		}
	}
	if len(layers) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

func encodeLayer(name string, fc *geojson.FeatureCollection, tile maptile.Tile, bound orb.Bound) *mvt.Layer {
	if fc == nil {
		return nil
	}

	// Clip and ProjectToTile mutate geometry in place.
	clipped := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil || !intersects(f.Geometry, bound) {
			continue
		}
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		clone.ID = f.ID
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		clipped.Append(clone)
	}
	if len(clipped.Features) == 0 {
		return nil
	}

	layer := mvt.NewLayer(name, clipped)
	if eps := simplifyEpsilon(tile.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(bound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil
	}
	return layer
}

// intersects reports whether g touches the tile bound. Lines whose bounds
// overlap the tile are kept and left to Clip.
func intersects(g orb.Geometry, bound orb.Bound) bool {
	if !g.Bound().Intersects(bound) {
		return false
	}

	switch g := g.(type) {
	case orb.Point:
		return bound.Contains(g)
	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if bound.Contains(p) {
					return true
				}
			}
		}
		corners := []orb.Point{
			bound.Min,
			{bound.Max[0], bound.Min[1]},
			bound.Max,
			{bound.Min[0], bound.Max[1]},
			bound.Center(),
		}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// TilesInBound returns the tiles at zoom covering b.
func TilesInBound(b orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	lo := maptile.At(b.Min, zoom)
	hi := maptile.At(b.Max, zoom)

	minX, maxX := lo.X, hi.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := lo.Y, hi.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var tiles []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// simplifyEpsilon returns the Douglas-Peucker tolerance in degrees for a
// zoom level. Deep zooms keep every vertex.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 12:
		return 0
	case zoom >= 8:
		return 0.00001
	case zoom >= 4:
		return 0.0001
	default:
		return 0.001
	}
}

func sortedIDs(sources map[string]*geojson.FeatureCollection) []string {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// bounds returns the union of every feature bound, and false when there are
// no features.
func bounds(sources map[string]*geojson.FeatureCollection) (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, fc := range sources {
		if fc == nil {
			continue
		}
		for _, f := range fc.Features {
			if f.Geometry == nil {
				continue
			}
			if !found {
				b = f.Geometry.Bound()
				found = true
				continue
			}
			b = b.Union(f.Geometry.Bound())
		}
	}
	return b, found
}
