package annotation

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/style"
)

// Map is the map session a manager renders into. *mapview.Map implements it.
type Map interface {
	Style() *style.Style
	Projection() *projection.Viewport
	Post(fn func())
	OnStyleLoaded(fn func(*style.Style)) (unsubscribe func())
	QueryRenderedFeatures(pt projection.ScreenPoint, layerIDs ...string) []*geojson.Feature

	AddOnMapClickListener(l mapview.ClickListener)
	RemoveOnMapClickListener(l mapview.ClickListener)
	AddOnMapLongClickListener(l mapview.LongClickListener)
	RemoveOnMapLongClickListener(l mapview.LongClickListener)
	AddMoveListener(l mapview.MoveListener)
	RemoveMoveListener(l mapview.MoveListener)
}

var _ Map = (*mapview.Map)(nil)

// ManagerOptions configure a manager's source and layer.
type ManagerOptions struct {
	// AboveLayerID and BelowLayerID place the layer relative to an existing
	// one. At most one may be set; with neither the layer goes on top.
	AboveLayerID string
	BelowLayerID string
	// Source configures the GeoJSON source.
	Source style.SourceOptions
	// Layout holds layer-level properties shared by every annotation.
	Layout map[string]any
	// Filter restricts which features the layer renders.
	Filter style.Expression
	// Drag registers the manager for drag hit-testing.
	Drag *DragController
	// Events receives lifecycle events.
	Events events.Publisher
}

// Manager owns every annotation of one key and the source and layer pair
// they render through.
type Manager struct {
	m        Map
	kind     Kind
	key      Key
	layout   map[string]any
	opts     ManagerOptions
	provider *ElementProvider
	log      *logrus.Entry

	style  *style.Style
	source *style.GeoJSONSource
	layer  *style.Layer
	filter style.Expression

	annotations map[int64]*Annotation
	nextID      int64
	contained   bool

	upToDate    atomic.Bool
	destroyed   bool
	enabled     map[string]bool
	unsubscribe func()

	clickListeners     listeners[ClickListener]
	longClickListeners listeners[LongClickListener]
	dragListeners      listeners[DragListener]
}

// NewManager creates a manager for kind k on a fully loaded style. The
// manager re-creates its source and layer after every style load.
func NewManager(m Map, k Kind, opts ManagerOptions) (*Manager, error) {
	mgr, err := newManager(m, k, opts, false)
	if err != nil {
		return nil, err
	}
	mgr.unsubscribe = m.OnStyleLoaded(mgr.onStyleLoaded)
	return mgr, nil
}

func newManager(m Map, k Kind, opts ManagerOptions, contained bool) (*Manager, error) {
	if opts.AboveLayerID != "" && opts.BelowLayerID != "" {
		return nil, ErrConflictingPlacement
	}
	s := m.Style()
	if s == nil || !s.FullyLoaded() {
		return nil, ErrStyleNotLoaded
	}
	if _, ok := propertyTables[k]; !ok {
		return nil, fmt.Errorf("unknown kind %v", k)
	}
	layout, err := resolveLayout(k, opts.Layout)
	if err != nil {
		return nil, err
	}

	provider := NewElementProvider(k)
	mgr := &Manager{
		m:           m,
		kind:        k,
		key:         newKey(k, layout),
		layout:      layout,
		opts:        opts,
		provider:    provider,
		filter:      opts.Filter,
		annotations: make(map[int64]*Annotation),
		contained:   contained,
		enabled:     make(map[string]bool),
		log: logrus.WithFields(logrus.Fields{
			"manager": k.String(),
			"layer":   provider.LayerID(),
		}),
	}
	mgr.upToDate.Store(true)

	if err := mgr.initialize(s); err != nil {
		return nil, err
	}

	m.AddOnMapClickListener(mgr)
	m.AddOnMapLongClickListener(mgr)
	if opts.Drag != nil {
		opts.Drag.addManager(mgr)
	}
	return mgr, nil
}

// initialize adds the source and layer to s and re-flushes the held
// annotations. A collision leaves the style as it was and nothing is
// recorded as added.
func (mgr *Manager) initialize(s *style.Style) error {
	mgr.style = s
	mgr.source = nil
	mgr.layer = nil
	mgr.enabled = make(map[string]bool)

	src := mgr.provider.Source(mgr.opts.Source)
	if err := s.AddSource(src); err != nil {
		mgr.log.WithError(err).Warn("Could not add annotation source")
		return fmt.Errorf("add source %s: %w", src.ID(), err)
	}

	layer := mgr.provider.Layer()
	for name, v := range mgr.layout {
		layer.SetProperty(name, featureValue(v))
	}
	if mgr.filter != nil {
		layer.SetFilter(mgr.filter)
	}

	var err error
	switch {
	case mgr.opts.AboveLayerID != "":
		err = s.AddLayerAbove(layer, mgr.opts.AboveLayerID)
	case mgr.opts.BelowLayerID != "":
		err = s.AddLayerBelow(layer, mgr.opts.BelowLayerID)
	default:
		err = s.AddLayer(layer)
	}
	if err != nil {
		if rmErr := s.RemoveSource(src.ID()); rmErr != nil {
			mgr.log.WithError(rmErr).Debug("Could not roll back annotation source")
		}
		mgr.log.WithError(err).Warn("Could not add annotation layer")
		return fmt.Errorf("add layer %s: %w", layer.ID(), err)
	}

	mgr.source = src
	mgr.layer = layer
	for _, a := range mgr.sorted() {
		mgr.registerImages(a)
	}
	if len(mgr.annotations) > 0 {
		mgr.UpdateSourceNow()
	}
	return nil
}

func (mgr *Manager) onStyleLoaded(s *style.Style) {
	if mgr.destroyed {
		return
	}
	if err := mgr.initialize(s); err != nil {
		mgr.log.WithError(err).Error("Could not restore annotations after style load")
		return
	}
	mgr.log.WithField("annotations", len(mgr.annotations)).Debug("Restored annotations after style load")
}

// Kind returns the annotation kind the manager holds.
func (mgr *Manager) Kind() Kind { return mgr.kind }

// Key returns the key every held annotation shares.
func (mgr *Manager) Key() Key { return mgr.key }

// LayerID returns the id of the manager's layer, for stacking other layers
// relative to it.
func (mgr *Manager) LayerID() string { return mgr.provider.LayerID() }

// SourceID returns the id of the manager's source.
func (mgr *Manager) SourceID() string { return mgr.provider.SourceID() }

// Filter returns the layer filter.
func (mgr *Manager) Filter() style.Expression { return mgr.filter }

// SetFilter restricts which features of the source the layer renders.
func (mgr *Manager) SetFilter(f style.Expression) {
	mgr.filter = f
	if mgr.layer != nil {
		mgr.layer.SetFilter(f)
	}
}

// Len returns the number of held annotations.
func (mgr *Manager) Len() int { return len(mgr.annotations) }

// Get returns the held annotation with the given id.
func (mgr *Manager) Get(id int64) (*Annotation, bool) {
	a, ok := mgr.annotations[id]
	return a, ok
}

// Annotations returns the held annotations ordered by id.
func (mgr *Manager) Annotations() []*Annotation {
	return mgr.sorted()
}

func (mgr *Manager) sorted() []*Annotation {
	out := make([]*Annotation, 0, len(mgr.annotations))
	for _, a := range mgr.annotations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Create builds an annotation with the next id and schedules a flush.
// Layer-level properties default to the manager's layout; an annotation
// whose key differs from the manager's is rejected.
func (mgr *Manager) Create(opts Options) (*Annotation, error) {
	list, err := mgr.CreateBatch([]Options{opts})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

// CreateBatch creates every annotation or none, and schedules one flush.
func (mgr *Manager) CreateBatch(list []Options) ([]*Annotation, error) {
	if mgr.destroyed {
		return nil, ErrDestroyed
	}
	if mgr.contained {
		return nil, ErrContainerManaged
	}
	built := make([]*Annotation, len(list))
	for i, opts := range list {
		a, err := mgr.build(opts)
		if err != nil {
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		built[i] = a
	}
	for _, a := range built {
		if err := a.attach(mgr, mgr.nextID); err != nil {
			return nil, err
		}
		mgr.nextID++
		mgr.track(a)
		mgr.publish(events.Created, a)
	}
	if len(built) > 0 {
		mgr.UpdateSource()
	}
	return built, nil
}

func (mgr *Manager) build(opts Options) (*Annotation, error) {
	props := make(map[string]any, len(mgr.opts.Layout)+len(opts.Properties))
	for name, v := range mgr.opts.Layout {
		props[name] = v
	}
	for name, v := range opts.Properties {
		props[name] = v
	}
	opts.Properties = props

	a, err := New(mgr.kind, opts)
	if err != nil {
		return nil, err
	}
	if a.Key() != mgr.key {
		return nil, fmt.Errorf("%s: %w", a.Key(), ErrKeyMismatch)
	}
	return a, nil
}

// add tracks an annotation owned by a container.
func (mgr *Manager) add(a *Annotation) error {
	if a.Key() != mgr.key {
		return fmt.Errorf("%s: %w", a.Key(), ErrKeyMismatch)
	}
	mgr.track(a)
	mgr.UpdateSource()
	return nil
}

func (mgr *Manager) track(a *Annotation) {
	mgr.annotations[a.id] = a
	mgr.registerImages(a)
}

func (mgr *Manager) registerImages(a *Annotation) {
	if mgr.style == nil {
		return
	}
	for _, img := range a.images() {
		if !mgr.style.HasImage(img.Name) {
			mgr.style.AddImage(img.Name, img.Bitmap)
		}
	}
}

// Delete removes an annotation. Deleting one that is not held is a no-op.
func (mgr *Manager) Delete(a *Annotation) {
	mgr.DeleteBatch([]*Annotation{a})
}

// DeleteBatch removes every held annotation in list and schedules one flush.
func (mgr *Manager) DeleteBatch(list []*Annotation) {
	removed := 0
	for _, a := range list {
		if mgr.remove(a) {
			removed++
		}
	}
	if removed > 0 {
		mgr.UpdateSource()
	}
}

// DeleteAll removes every annotation and schedules a flush.
func (mgr *Manager) DeleteAll() {
	for _, a := range mgr.sorted() {
		mgr.remove(a)
	}
	mgr.UpdateSource()
}

func (mgr *Manager) remove(a *Annotation) bool {
	if a == nil {
		return false
	}
	if cur, ok := mgr.annotations[a.id]; !ok || cur != a {
		mgr.log.WithField("annotation_id", a.id).Debug("Ignoring delete of untracked annotation")
		return false
	}
	delete(mgr.annotations, a.id)
	if mgr.opts.Drag != nil {
		mgr.opts.Drag.onAnnotationDeleted(a)
	}
	mgr.publish(events.Deleted, a)
	return true
}

// Update schedules a flush for a held annotation. Annotations the manager
// no longer holds are rejected so that deleted ones are not rendered again.
func (mgr *Manager) Update(a *Annotation) error {
	return mgr.UpdateBatch([]*Annotation{a})
}

// UpdateBatch updates every annotation in list and schedules one flush.
func (mgr *Manager) UpdateBatch(list []*Annotation) error {
	var errs []error
	updated := 0
	for _, a := range list {
		if !mgr.tracks(a) {
			id := int64(-1)
			if a != nil {
				id = a.id
			}
			mgr.log.WithField("annotation_id", id).Warn("Rejected update of untracked annotation")
			errs = append(errs, fmt.Errorf("annotation %d: %w", id, ErrNotTracked))
			continue
		}
		updated++
		mgr.publish(events.Updated, a)
	}
	if updated > 0 {
		mgr.UpdateSource()
	}
	return errors.Join(errs...)
}

func (mgr *Manager) tracks(a *Annotation) bool {
	if a == nil {
		return false
	}
	cur, ok := mgr.annotations[a.id]
	return ok && cur == a
}

func (mgr *Manager) annotationChanged(a *Annotation) {
	if err := mgr.Update(a); err != nil {
		mgr.log.WithError(err).Debug("Change to deleted annotation not rendered")
	}
}

// UpdateSource marks the source dirty. The first call after a flush posts
// one deferred flush; later calls fold into it.
func (mgr *Manager) UpdateSource() {
	if !mgr.upToDate.CompareAndSwap(true, false) {
		return
	}
	mgr.m.Post(func() {
		mgr.upToDate.Store(true)
		if mgr.destroyed {
			return
		}
		if mgr.style == nil || mgr.source == nil || mgr.m.Style() != mgr.style || !mgr.style.FullyLoaded() {
			mgr.log.Debug("Skipping flush while style loads")
			return
		}
		mgr.UpdateSourceNow()
	})
}

// UpdateSourceNow writes every held annotation to the source in one call
// and enables the data-driven properties they use.
func (mgr *Manager) UpdateSourceNow() {
	if mgr.source == nil {
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, a := range mgr.sorted() {
		fc.Append(a.Feature())
		for _, name := range a.usedDataDrivenProperties() {
			if err := mgr.EnableDataDrivenProperty(name); err != nil {
				mgr.log.WithError(err).Warn("Could not enable data-driven property")
			}
		}
	}
	mgr.source.SetFeatureCollection(fc)
}

// EnableDataDrivenProperty switches a layer property from its constant
// value to reading the feature property of the same name. It is a no-op
// once enabled.
func (mgr *Manager) EnableDataDrivenProperty(name string) error {
	spec, err := lookupProperty(mgr.kind, name)
	if err != nil {
		return err
	}
	if !spec.dataDriven {
		return fmt.Errorf("%s is layer-level: %w", name, ErrUnknownProperty)
	}
	if mgr.enabled[name] {
		return nil
	}
	mgr.enabled[name] = true
	if mgr.layer != nil {
		mgr.layer.SetProperty(name, style.Get(name))
	}
	return nil
}

// DataDrivenPropertyEnabled reports whether name reads per-feature values.
func (mgr *Manager) DataDrivenPropertyEnabled(name string) bool {
	return mgr.enabled[name]
}

// AddClickListener registers a listener for clicks on this manager's
// annotations.
func (mgr *Manager) AddClickListener(l ClickListener) { mgr.clickListeners.add(l) }

// RemoveClickListener unregisters a click listener.
func (mgr *Manager) RemoveClickListener(l ClickListener) { mgr.clickListeners.remove(l) }

// AddLongClickListener registers a long-click listener.
func (mgr *Manager) AddLongClickListener(l LongClickListener) { mgr.longClickListeners.add(l) }

// RemoveLongClickListener unregisters a long-click listener.
func (mgr *Manager) RemoveLongClickListener(l LongClickListener) { mgr.longClickListeners.remove(l) }

// AddDragListener registers a drag listener.
func (mgr *Manager) AddDragListener(l DragListener) { mgr.dragListeners.add(l) }

// RemoveDragListener unregisters a drag listener.
func (mgr *Manager) RemoveDragListener(l DragListener) { mgr.dragListeners.remove(l) }

// OnMapClick resolves a map click to an annotation and offers it to the
// click listeners in registration order.
func (mgr *Manager) OnMapClick(pt projection.ScreenPoint) bool {
	if mgr.clickListeners.len() == 0 {
		return false
	}
	a := mgr.queryMapForFeatures(pt)
	if a == nil {
		return false
	}
	for _, l := range mgr.clickListeners.snapshot() {
		if l.OnAnnotationClick(a) {
			return true
		}
	}
	return false
}

// OnMapLongClick is OnMapClick for long clicks.
func (mgr *Manager) OnMapLongClick(pt projection.ScreenPoint) bool {
	if mgr.longClickListeners.len() == 0 {
		return false
	}
	a := mgr.queryMapForFeatures(pt)
	if a == nil {
		return false
	}
	for _, l := range mgr.longClickListeners.snapshot() {
		if l.OnAnnotationLongClick(a) {
			return true
		}
	}
	return false
}

// queryMapForFeatures returns the topmost held annotation rendered at pt.
func (mgr *Manager) queryMapForFeatures(pt projection.ScreenPoint) *Annotation {
	if mgr.layer == nil || mgr.destroyed {
		return nil
	}
	features := mgr.m.QueryRenderedFeatures(pt, mgr.layer.ID())
	if len(features) == 0 {
		return nil
	}
	id, ok := style.Number(features[0].Properties[FeatureIDProperty])
	if !ok {
		return nil
	}
	return mgr.annotations[int64(id)]
}

func (mgr *Manager) fireDragStarted(a *Annotation) {
	for _, l := range mgr.dragListeners.snapshot() {
		l.OnAnnotationDragStarted(a)
	}
	mgr.publishDrag(events.DragStarted, a)
}

func (mgr *Manager) fireDrag(a *Annotation) {
	for _, l := range mgr.dragListeners.snapshot() {
		l.OnAnnotationDrag(a)
	}
	mgr.publishDrag(events.Dragged, a)
}

func (mgr *Manager) fireDragFinished(a *Annotation) {
	for _, l := range mgr.dragListeners.snapshot() {
		l.OnAnnotationDragFinished(a)
	}
	mgr.publishDrag(events.DragFinished, a)
}

// publish reports lifecycle events of annotations the manager owns. A
// container reports its own.
func (mgr *Manager) publish(action string, a *Annotation) {
	if mgr.contained {
		return
	}
	mgr.publishDrag(action, a)
}

func (mgr *Manager) publishDrag(action string, a *Annotation) {
	if mgr.opts.Events == nil {
		return
	}
	mgr.opts.Events.Publish(events.Event{Kind: mgr.kind.String(), Action: action, ID: a.id})
}

// Destroy detaches the manager from the map: click and drag dispatch, style
// reloads, and pending flushes. The source and layer stay in the style.
func (mgr *Manager) Destroy() {
	if mgr.destroyed {
		return
	}
	mgr.destroyed = true
	mgr.m.RemoveOnMapClickListener(mgr)
	mgr.m.RemoveOnMapLongClickListener(mgr)
	if mgr.unsubscribe != nil {
		mgr.unsubscribe()
		mgr.unsubscribe = nil
	}
	if mgr.opts.Drag != nil {
		mgr.opts.Drag.removeManager(mgr)
	}
	mgr.clickListeners.clear()
	mgr.longClickListeners.clear()
	mgr.dragListeners.clear()
	mgr.log.Debug("Manager destroyed")
}

// Destroyed reports whether Destroy was called.
func (mgr *Manager) Destroyed() bool { return mgr.destroyed }

// removeFromStyle drops the layer and source from the style the manager
// last attached to.
func (mgr *Manager) removeFromStyle() {
	if mgr.style == nil || mgr.layer == nil {
		return
	}
	if l, ok := mgr.style.Layer(mgr.layer.ID()); ok && l == mgr.layer {
		if err := mgr.style.RemoveLayer(l.ID()); err != nil {
			mgr.log.WithError(err).Debug("Could not remove layer")
		}
	}
	if src, ok := mgr.style.Source(mgr.source.ID()); ok && src == mgr.source {
		if err := mgr.style.RemoveSource(src.ID()); err != nil {
			mgr.log.WithError(err).Debug("Could not remove source")
		}
	}
	mgr.source = nil
	mgr.layer = nil
}
