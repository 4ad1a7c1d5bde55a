package style

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// SourceOptions are the GeoJSON source tuning knobs a map renderer accepts.
type SourceOptions struct {
	MaxZoom        int     `json:"maxzoom,omitempty" yaml:"maxzoom"`
	Buffer         int     `json:"buffer,omitempty" yaml:"buffer"`
	Tolerance      float64 `json:"tolerance,omitempty" yaml:"tolerance"`
	Cluster        bool    `json:"cluster,omitempty" yaml:"cluster"`
	ClusterRadius  int     `json:"clusterRadius,omitempty" yaml:"clusterRadius"`
	ClusterMaxZoom int     `json:"clusterMaxZoom,omitempty" yaml:"clusterMaxZoom"`
	LineMetrics    bool    `json:"lineMetrics,omitempty" yaml:"lineMetrics"`
}

// GeoJSONSource holds an in-memory feature collection that layers render.
type GeoJSONSource struct {
	id       string
	options  SourceOptions
	data     *geojson.FeatureCollection
	revision int
}

// NewGeoJSONSource creates an empty source.
func NewGeoJSONSource(id string, opts SourceOptions) *GeoJSONSource {
	return &GeoJSONSource{
		id:      id,
		options: opts,
		data:    geojson.NewFeatureCollection(),
	}
}

// ID returns the source id.
func (s *GeoJSONSource) ID() string {
	return s.id
}

// Options returns the source options.
func (s *GeoJSONSource) Options() SourceOptions {
	return s.options
}

// SetFeatureCollection replaces the whole source content.
func (s *GeoJSONSource) SetFeatureCollection(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	s.data = fc
	s.revision++
}

// FeatureCollection returns the current content.
func (s *GeoJSONSource) FeatureCollection() *geojson.FeatureCollection {
	return s.data
}

// Revision counts SetFeatureCollection calls.
func (s *GeoJSONSource) Revision() int {
	return s.revision
}

// MarshalJSON encodes the source in style-document form.
func (s *GeoJSONSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string                     `json:"type"`
		Data *geojson.FeatureCollection `json:"data"`
		SourceOptions
	}{
		Type:          "geojson",
		Data:          s.data,
		SourceOptions: s.options,
	})
}
