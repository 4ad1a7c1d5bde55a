// Package style is an in-memory map style: named GeoJSON sources, an
// ordered layer stack, and registered images. A Style is not safe for
// concurrent use; confine it to the map's loop.
package style

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"
)

var (
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	ErrSourceInUse    = errors.New("source is used by a layer")
	ErrLayerExists    = errors.New("layer already exists")
	ErrLayerNotFound  = errors.New("layer not found")
)

// Style is a map style document.
type Style struct {
	name    string
	sources map[string]*GeoJSONSource
	layers  []*Layer
	images  map[string]image.Image
	loaded  bool
}

// New creates an empty style that is not yet fully loaded.
func New(name string) *Style {
	return &Style{
		name:    name,
		sources: make(map[string]*GeoJSONSource),
		images:  make(map[string]image.Image),
	}
}

// Name returns the style name.
func (s *Style) Name() string {
	return s.name
}

// FullyLoaded reports whether the style can accept source and layer changes
// that will be rendered.
func (s *Style) FullyLoaded() bool {
	return s.loaded
}

// MarkLoading flags the style as mid-reload. Runtime sources and layers
// are dropped, as a renderer does when it re-parses a style document.
func (s *Style) MarkLoading() {
	s.loaded = false
	s.sources = make(map[string]*GeoJSONSource)
	s.layers = nil
}

// MarkLoaded flags the style as fully loaded.
func (s *Style) MarkLoaded() {
	s.loaded = true
}

// AddSource adds a source. A colliding id leaves the existing source in place.
func (s *Style) AddSource(src *GeoJSONSource) error {
	if _, exists := s.sources[src.ID()]; exists {
		return fmt.Errorf("add source %q: %w", src.ID(), ErrSourceExists)
	}
	s.sources[src.ID()] = src
	return nil
}

// RemoveSource removes a source that no layer references.
func (s *Style) RemoveSource(id string) error {
	if _, exists := s.sources[id]; !exists {
		return fmt.Errorf("remove source %q: %w", id, ErrSourceNotFound)
	}
	for _, l := range s.layers {
		if l.SourceID() == id {
			return fmt.Errorf("remove source %q (layer %q): %w", id, l.ID(), ErrSourceInUse)
		}
	}
	delete(s.sources, id)
	return nil
}

// Source returns a source by id.
func (s *Style) Source(id string) (*GeoJSONSource, bool) {
	src, ok := s.sources[id]
	return src, ok
}

// Sources returns all sources ordered by id.
func (s *Style) Sources() []*GeoJSONSource {
	out := make([]*GeoJSONSource, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (s *Style) layerIndex(id string) int {
	for i, l := range s.layers {
		if l.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Style) insertLayer(l *Layer, at int) error {
	if s.layerIndex(l.ID()) >= 0 {
		return fmt.Errorf("add layer %q: %w", l.ID(), ErrLayerExists)
	}
	s.layers = append(s.layers, nil)
	copy(s.layers[at+1:], s.layers[at:])
	s.layers[at] = l
	return nil
}

// AddLayer adds a layer on top of the stack.
func (s *Style) AddLayer(l *Layer) error {
	return s.insertLayer(l, len(s.layers))
}

// AddLayerAbove adds a layer directly above the layer with id above.
func (s *Style) AddLayerAbove(l *Layer, above string) error {
	i := s.layerIndex(above)
	if i < 0 {
		return fmt.Errorf("add layer %q above %q: %w", l.ID(), above, ErrLayerNotFound)
	}
	return s.insertLayer(l, i+1)
}

// AddLayerBelow adds a layer directly below the layer with id below.
func (s *Style) AddLayerBelow(l *Layer, below string) error {
	i := s.layerIndex(below)
	if i < 0 {
		return fmt.Errorf("add layer %q below %q: %w", l.ID(), below, ErrLayerNotFound)
	}
	return s.insertLayer(l, i)
}

// RemoveLayer removes a layer by id.
func (s *Style) RemoveLayer(id string) error {
	i := s.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("remove layer %q: %w", id, ErrLayerNotFound)
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	return nil
}

// Layer returns a layer by id.
func (s *Style) Layer(id string) (*Layer, bool) {
	i := s.layerIndex(id)
	if i < 0 {
		return nil, false
	}
	return s.layers[i], true
}

// Layers returns the layer stack, bottom first.
func (s *Style) Layers() []*Layer {
	out := make([]*Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// AddImage registers an image under name, replacing any previous one.
func (s *Style) AddImage(name string, img image.Image) {
	s.images[name] = img
}

// HasImage reports whether an image is registered under name.
func (s *Style) HasImage(name string) bool {
	_, ok := s.images[name]
	return ok
}

// RemoveImage drops a registered image.
func (s *Style) RemoveImage(name string) {
	delete(s.images, name)
}

// ImageNames returns registered image names, sorted.
func (s *Style) ImageNames() []string {
	names := make([]string, 0, len(s.images))
	for n := range s.images {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the style as a style document snapshot.
func (s *Style) MarshalJSON() ([]byte, error) {
	layers := s.layers
	if layers == nil {
		layers = []*Layer{}
	}
	return json.Marshal(struct {
		Version int                       `json:"version"`
		Name    string                    `json:"name"`
		Loaded  bool                      `json:"loaded"`
		Sources map[string]*GeoJSONSource `json:"sources"`
		Layers  []*Layer                  `json:"layers"`
		Images  []string                  `json:"images"`
	}{
		Version: 8,
		Name:    s.name,
		Loaded:  s.loaded,
		Sources: s.sources,
		Layers:  layers,
		Images:  s.ImageNames(),
	})
}
