package annotation

import (
	"fmt"
	"sync/atomic"

	"github.com/joeblew999/plat-annotate/internal/style"
)

var elementCounter atomic.Int64

// ElementProvider names and builds the source and layer pair of one
// manager. Ids are unique within the process and stable for the
// provider's lifetime, so a manager re-creates the same ids after a
// style reload.
type ElementProvider struct {
	kind     Kind
	sourceID string
	layerID  string
}

// NewElementProvider reserves a fresh source and layer id for kind k.
func NewElementProvider(k Kind) *ElementProvider {
	n := elementCounter.Add(1) - 1
	return &ElementProvider{
		kind:     k,
		sourceID: fmt.Sprintf("annotation-%s-source-%d", k, n),
		layerID:  fmt.Sprintf("annotation-%s-layer-%d", k, n),
	}
}

// SourceID returns the source id.
func (p *ElementProvider) SourceID() string { return p.sourceID }

// LayerID returns the layer id.
func (p *ElementProvider) LayerID() string { return p.layerID }

// Source builds a new GeoJSON source.
func (p *ElementProvider) Source(opts style.SourceOptions) *style.GeoJSONSource {
	return style.NewGeoJSONSource(p.sourceID, opts)
}

// Layer builds a new layer of the kind's type reading the source.
func (p *ElementProvider) Layer() *style.Layer {
	return style.NewLayer(p.layerID, p.kind.LayerType(), p.sourceID)
}
