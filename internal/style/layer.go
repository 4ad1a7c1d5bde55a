package style

import (
	"encoding/json"
	"sort"
)

// LayerType is the renderer kind of a layer.
type LayerType string

const (
	LayerCircle LayerType = "circle"
	LayerSymbol LayerType = "symbol"
	LayerLine   LayerType = "line"
	LayerFill   LayerType = "fill"
)

// Layer renders one source with a set of paint/layout properties.
// Property values are constants or Expressions.
type Layer struct {
	id         string
	layerType  LayerType
	sourceID   string
	properties map[string]any
	filter     Expression
}

// NewLayer creates a layer reading from sourceID.
func NewLayer(id string, t LayerType, sourceID string) *Layer {
	return &Layer{
		id:         id,
		layerType:  t,
		sourceID:   sourceID,
		properties: make(map[string]any),
	}
}

func (l *Layer) ID() string       { return l.id }
func (l *Layer) Type() LayerType  { return l.layerType }
func (l *Layer) SourceID() string { return l.sourceID }

// SetProperty sets one paint or layout property.
func (l *Layer) SetProperty(name string, v any) {
	l.properties[name] = v
}

// SetProperties sets several properties at once.
func (l *Layer) SetProperties(props map[string]any) {
	for k, v := range props {
		l.properties[k] = v
	}
}

// Property returns the value of a property, if set.
func (l *Layer) Property(name string) (any, bool) {
	v, ok := l.properties[name]
	return v, ok
}

// Properties returns a copy of all set properties.
func (l *Layer) Properties() map[string]any {
	out := make(map[string]any, len(l.properties))
	for k, v := range l.properties {
		out[k] = v
	}
	return out
}

// SetFilter restricts the features this layer renders. nil clears it.
func (l *Layer) SetFilter(f Expression) {
	l.filter = f
}

// Filter returns the current filter.
func (l *Layer) Filter() Expression {
	return l.filter
}

// Resolve evaluates a property for a feature: the layer value when set,
// otherwise fallback.
func (l *Layer) Resolve(name string, props map[string]any, fallback any) any {
	v, ok := l.properties[name]
	if !ok {
		return fallback
	}
	if r := Evaluate(v, props); r != nil {
		return r
	}
	return fallback
}

// MarshalJSON encodes the layer in style-document form.
func (l *Layer) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(l.properties))
	for k := range l.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	props := make(map[string]any, len(names))
	for _, k := range names {
		props[k] = l.properties[k]
	}
	return json.Marshal(struct {
		ID         string         `json:"id"`
		Type       LayerType      `json:"type"`
		Source     string         `json:"source"`
		Properties map[string]any `json:"properties,omitempty"`
		Filter     Expression     `json:"filter,omitempty"`
	}{
		ID:         l.id,
		Type:       l.layerType,
		Source:     l.sourceID,
		Properties: props,
		Filter:     l.filter,
	})
}
