// Package scene reads and writes annotation sets: YAML scene files for the
// CLI, JSON request bodies for the API and GeoJSON snapshots on disk all
// share the Annotation shape defined here.
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-annotate/internal/annotation"
	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/style"
)

// Default viewport size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Viewport is the camera a scene is rendered with.
type Viewport struct {
	Center [2]float64 `json:"center" yaml:"center" doc:"Longitude and latitude of the map centre"`
	Zoom   float64    `json:"zoom" yaml:"zoom" minimum:"0" maximum:"22"`
	Width  float64    `json:"width,omitempty" yaml:"width" doc:"Viewport width in pixels"`
	Height float64    `json:"height,omitempty" yaml:"height" doc:"Viewport height in pixels"`
}

// Projection returns a Web Mercator viewport for v, filling in the default
// size.
func (v Viewport) Projection() *projection.Viewport {
	w, h := v.Width, v.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return projection.NewViewport(orb.Point{v.Center[0], v.Center[1]}, v.Zoom, w, h)
}

// Annotation describes one annotation independent of its owner.
type Annotation struct {
	ID         int64          `json:"id" yaml:"-" readOnly:"true" required:"false"`
	Kind       string         `json:"kind" yaml:"kind" enum:"symbol,circle,line,fill"`
	Geometry   map[string]any `json:"geometry" yaml:"geometry" doc:"GeoJSON geometry: Point for symbols and circles, LineString for lines, Polygon for fills"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" doc:"Rendering properties by style name, e.g. circle-radius"`
	Draggable  bool           `json:"draggable,omitempty" yaml:"draggable,omitempty"`
	ZIndex     int            `json:"zIndex,omitempty" yaml:"zIndex,omitempty"`
}

// Build creates an unattached annotation.
func (a Annotation) Build() (*annotation.Annotation, error) {
	k, err := annotation.ParseKind(a.Kind)
	if err != nil {
		return nil, err
	}
	g, err := DecodeGeometry(a.Geometry)
	if err != nil {
		return nil, err
	}
	return annotation.New(k, annotation.Options{
		Geometry:   g,
		Properties: a.Properties,
		ZIndex:     a.ZIndex,
		Draggable:  a.Draggable,
	})
}

// FromAnnotation describes a. Image properties are reduced to their names.
func FromAnnotation(a *annotation.Annotation) Annotation {
	props := a.Properties()
	for k, v := range props {
		if img, ok := v.(annotation.Image); ok {
			props[k] = img.Name
		}
	}
	return Annotation{
		ID:         a.ID(),
		Kind:       a.Kind().String(),
		Geometry:   EncodeGeometry(a.Geometry()),
		Properties: props,
		Draggable:  a.Draggable(),
		ZIndex:     a.ZIndex(),
	}
}

// Feature encodes a for storage. The rendering properties are nested so
// they never clash with the bookkeeping fields.
func (a Annotation) Feature() (*geojson.Feature, error) {
	g, err := DecodeGeometry(a.Geometry)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(g)
	f.ID = a.ID
	f.Properties["kind"] = a.Kind
	f.Properties["draggable"] = a.Draggable
	f.Properties["zIndex"] = a.ZIndex
	if len(a.Properties) > 0 {
		f.Properties["properties"] = a.Properties
	}
	return f, nil
}

// FromFeature reverses Feature.
func FromFeature(f *geojson.Feature) (Annotation, error) {
	kind, ok := f.Properties["kind"].(string)
	if !ok {
		return Annotation{}, fmt.Errorf("feature %v has no kind", f.ID)
	}
	a := Annotation{
		Kind:     kind,
		Geometry: EncodeGeometry(f.Geometry),
	}
	if id, ok := style.Number(f.ID); ok {
		a.ID = int64(id)
	}
	a.Draggable, _ = f.Properties["draggable"].(bool)
	if z, ok := style.Number(f.Properties["zIndex"]); ok {
		a.ZIndex = int(z)
	}
	if props, ok := f.Properties["properties"].(map[string]any); ok {
		a.Properties = props
	}
	return a, nil
}

// DecodeGeometry converts a GeoJSON geometry object.
func DecodeGeometry(m map[string]any) (orb.Geometry, error) {
	if m == nil {
		return nil, fmt.Errorf("missing geometry: %w", annotation.ErrInvalidGeometry)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, annotation.ErrInvalidGeometry)
	}
	return g.Geometry(), nil
}

// EncodeGeometry converts g to a GeoJSON geometry object.
func EncodeGeometry(g orb.Geometry) map[string]any {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// Scene is a viewport and the annotations drawn on it.
type Scene struct {
	Name        string              `yaml:"name"`
	Viewport    Viewport            `yaml:"viewport"`
	Source      style.SourceOptions `yaml:"source"`
	Annotations []Annotation        `yaml:"annotations"`
}

// Load reads a YAML scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a YAML scene.
func Parse(data []byte) (*Scene, error) {
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = "scene"
	}
	return &sc, nil
}

// Marshal encodes the scene as YAML.
func (sc *Scene) Marshal() ([]byte, error) {
	return yaml.Marshal(sc)
}

// Render draws every annotation of the scene on a fresh map and returns
// the resulting style once all deferred source updates have run.
func (sc *Scene) Render() (*style.Style, error) {
	q := scheduler.NewQueue()
	m := mapview.New(sc.Viewport.Projection(), q)
	c, err := annotation.NewContainer(m, annotation.ContainerOptions{Source: sc.Source})
	if err != nil {
		return nil, err
	}

	s := style.New(sc.Name)
	s.MarkLoaded()
	m.SetStyle(s)
	q.Flush()

	for i, spec := range sc.Annotations {
		a, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		if err := c.Add(a); err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
	}
	q.Flush()
	return m.Style(), nil
}

// Collection encodes annotations as a feature collection ordered by id.
func Collection(as []Annotation) (*geojson.FeatureCollection, error) {
	sorted := append([]Annotation(nil), as...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	fc := geojson.NewFeatureCollection()
	for _, a := range sorted {
		f, err := a.Feature()
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", a.ID, err)
		}
		fc.Append(f)
	}
	return fc, nil
}
