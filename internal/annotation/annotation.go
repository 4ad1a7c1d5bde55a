// Package annotation manages mutable collections of map decorations
// (symbols, circles, lines, fills) and keeps a map style's sources and
// layers in sync with them.
//
// All types in this package are confined to the map's loop: mutations,
// deferred flushes and gesture handling run on one goroutine.
package annotation

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-annotate/internal/projection"
)

// FeatureIDProperty carries the annotation id inside rendered features.
const FeatureIDProperty = "id"

// Projection converts between geographic and screen coordinates.
type Projection interface {
	ToScreenLocation(p orb.Point) projection.ScreenPoint
	FromScreenLocation(s projection.ScreenPoint) orb.Point
}

// owner is the single container or manager an annotation belongs to.
type owner interface {
	annotationChanged(a *Annotation)
}

// Options describe an annotation to create.
type Options struct {
	Geometry   orb.Geometry
	Properties map[string]any
	ZIndex     int
	Draggable  bool
	Data       any
}

// Annotation is one map decoration. The kind is fixed at construction and
// selects the geometry shape and the property table.
type Annotation struct {
	id        int64
	kind      Kind
	geometry  orb.Geometry
	props     map[string]any
	zIndex    int
	draggable bool
	data      any
	owner     owner
}

// New validates opts and builds an unattached annotation of kind k.
func New(k Kind, opts Options) (*Annotation, error) {
	if _, ok := propertyTables[k]; !ok {
		return nil, fmt.Errorf("unknown kind %v", k)
	}
	if err := k.validateGeometry(opts.Geometry); err != nil {
		return nil, err
	}
	a := &Annotation{
		id:        -1,
		kind:      k,
		geometry:  cloneGeometry(opts.Geometry),
		props:     make(map[string]any, len(opts.Properties)),
		zIndex:    opts.ZIndex,
		draggable: opts.Draggable,
		data:      opts.Data,
	}

	names := make([]string, 0, len(opts.Properties))
	for name := range opts.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := a.setProperty(name, opts.Properties[name]); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewSymbol builds a symbol annotation at a point.
func NewSymbol(opts Options) (*Annotation, error) { return New(KindSymbol, opts) }

// NewCircle builds a circle annotation at a point.
func NewCircle(opts Options) (*Annotation, error) { return New(KindCircle, opts) }

// NewLine builds a line annotation along a line string.
func NewLine(opts Options) (*Annotation, error) { return New(KindLine, opts) }

// NewFill builds a fill annotation covering a polygon.
func NewFill(opts Options) (*Annotation, error) { return New(KindFill, opts) }

// ID returns the id assigned by the owner, or -1 before attachment.
func (a *Annotation) ID() int64 { return a.id }

// Kind returns the annotation variant.
func (a *Annotation) Kind() Kind { return a.kind }

// Geometry returns a copy of the geometry.
func (a *Annotation) Geometry() orb.Geometry { return cloneGeometry(a.geometry) }

// SetGeometry replaces the geometry. The shape must match the kind.
func (a *Annotation) SetGeometry(g orb.Geometry) error {
	if err := a.kind.validateGeometry(g); err != nil {
		return err
	}
	a.geometry = cloneGeometry(g)
	a.changed()
	return nil
}

// ZIndex returns the z-order hint; higher draws on top.
func (a *Annotation) ZIndex() int { return a.zIndex }

// SetZIndex changes the z-order hint.
func (a *Annotation) SetZIndex(z int) {
	a.zIndex = z
	a.changed()
}

// Draggable reports whether the annotation can be dragged.
func (a *Annotation) Draggable() bool { return a.draggable }

// SetDraggable toggles dragging. Clearing it ends a drag in progress on
// the next move.
func (a *Annotation) SetDraggable(d bool) {
	a.draggable = d
	a.changed()
}

// Data returns the opaque user payload.
func (a *Annotation) Data() any { return a.data }

// SetData replaces the opaque user payload. It does not affect rendering.
func (a *Annotation) SetData(d any) { a.data = d }

// Get returns the value of a property: the explicit value if set,
// otherwise the default. The bool is false for unknown names.
func (a *Annotation) Get(name string) (any, bool) {
	spec, err := lookupProperty(a.kind, name)
	if err != nil {
		return nil, false
	}
	if name == a.kind.SortKeyProperty() {
		return float64(a.zIndex), true
	}
	if v, ok := a.props[name]; ok {
		return v, true
	}
	return spec.def, true
}

// IsSet reports whether a property has an explicit value.
func (a *Annotation) IsSet(name string) bool {
	_, ok := a.props[name]
	return ok
}

// Set validates and assigns a property. Layer-level properties are part of
// the annotation key and cannot change once the annotation has an owner,
// even after removal. To change one, build a new annotation, for example
// from Clone, and add that.
func (a *Annotation) Set(name string, v any) error {
	if err := a.setProperty(name, v); err != nil {
		return err
	}
	a.changed()
	return nil
}

// Unset reverts a property to its default.
func (a *Annotation) Unset(name string) error {
	spec, err := lookupProperty(a.kind, name)
	if err != nil {
		return err
	}
	if _, ok := a.props[name]; !ok {
		return nil
	}
	if !spec.dataDriven && a.owner != nil {
		return fmt.Errorf("%s: %w", name, ErrKeyLocked)
	}
	delete(a.props, name)
	a.changed()
	return nil
}

func (a *Annotation) setProperty(name string, v any) error {
	spec, err := lookupProperty(a.kind, name)
	if err != nil {
		return err
	}
	if !spec.dataDriven && a.owner != nil {
		return fmt.Errorf("%s: %w", name, ErrKeyLocked)
	}
	nv, err := spec.normalize(v)
	if err != nil {
		return err
	}
	if name == a.kind.SortKeyProperty() {
		a.zIndex = int(nv.(float64))
		return nil
	}
	a.props[name] = nv
	return nil
}

// Clone returns an unattached copy with the same kind, geometry, properties,
// z-index, draggable flag and data.
func (a *Annotation) Clone() *Annotation {
	return &Annotation{
		id:        -1,
		kind:      a.kind,
		geometry:  cloneGeometry(a.geometry),
		props:     a.Properties(),
		zIndex:    a.zIndex,
		draggable: a.draggable,
		data:      a.data,
	}
}

// Properties returns a copy of the explicitly set properties.
func (a *Annotation) Properties() map[string]any {
	out := make(map[string]any, len(a.props))
	for k, v := range a.props {
		out[k] = v
	}
	return out
}

func (a *Annotation) changed() {
	if a.owner != nil {
		a.owner.annotationChanged(a)
	}
}

// attach binds the annotation to its one owner for life.
func (a *Annotation) attach(o owner, id int64) error {
	if a.owner != nil {
		return fmt.Errorf("%s annotation %d: %w", a.kind, a.id, ErrAlreadyOwned)
	}
	a.owner = o
	a.id = id
	return nil
}

// Feature serializes the annotation: its geometry, its id, and every
// data-driven property with its explicit or default value.
func (a *Annotation) Feature() *geojson.Feature {
	f := geojson.NewFeature(cloneGeometry(a.geometry))
	f.ID = a.id
	f.Properties[FeatureIDProperty] = a.id
	for name, spec := range propertyIndex[a.kind] {
		if !spec.dataDriven {
			continue
		}
		v, _ := a.Get(name)
		if v == nil {
			continue
		}
		f.Properties[name] = featureValue(v)
	}
	return f
}

// usedDataDrivenProperties lists the data-driven properties this
// annotation sets explicitly.
func (a *Annotation) usedDataDrivenProperties() []string {
	var used []string
	for name := range a.props {
		if propertyIndex[a.kind][name].dataDriven {
			used = append(used, name)
		}
	}
	if a.zIndex != 0 {
		used = append(used, a.kind.SortKeyProperty())
	}
	sort.Strings(used)
	return used
}

// images returns the bitmaps this annotation references.
func (a *Annotation) images() []Image {
	var imgs []Image
	for _, v := range a.props {
		if img, ok := v.(Image); ok && img.Bitmap != nil {
			imgs = append(imgs, img)
		}
	}
	sort.Slice(imgs, func(i, j int) bool { return imgs[i].Name < imgs[j].Name })
	return imgs
}

// layoutValues returns every layer-level property of the annotation with
// its explicit or default value.
func (a *Annotation) layoutValues() map[string]any {
	out := make(map[string]any)
	for name, spec := range propertyIndex[a.kind] {
		if spec.dataDriven {
			continue
		}
		v, _ := a.Get(name)
		if v != nil {
			out[name] = v
		}
	}
	return out
}

// Key classifies the annotation by kind and layer-level configuration.
func (a *Annotation) Key() Key {
	return newKey(a.kind, a.layoutValues())
}

func (a *Annotation) String() string {
	return fmt.Sprintf("%s(%d)", a.kind, a.id)
}

// offsetGeometry computes the geometry after a drag step, or false when any
// resulting vertex would leave the Mercator latitude range.
func (a *Annotation) offsetGeometry(p Projection, current projection.ScreenPoint, dx, dy float64) (orb.Geometry, bool) {
	shift := func(pt orb.Point) (orb.Point, bool) {
		s := p.ToScreenLocation(pt).Add(dx, dy)
		moved := p.FromScreenLocation(s)
		return moved, projection.ValidLatitude(moved[1])
	}

	switch g := a.geometry.(type) {
	case orb.Point:
		moved := p.FromScreenLocation(current)
		if !projection.ValidLatitude(moved[1]) {
			return nil, false
		}
		return moved, true

	case orb.LineString:
		out := make(orb.LineString, len(g))
		for i, pt := range g {
			moved, ok := shift(pt)
			if !ok {
				return nil, false
			}
			out[i] = moved
		}
		return out, true

	case orb.Polygon:
		out := make(orb.Polygon, len(g))
		for i, ring := range g {
			out[i] = make(orb.Ring, len(ring))
			for j, pt := range ring {
				moved, ok := shift(pt)
				if !ok {
					return nil, false
				}
				out[i][j] = moved
			}
		}
		return out, true
	}
	return nil, false
}
