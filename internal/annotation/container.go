package annotation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/style"
)

// ContainerOptions configure every manager a container creates.
type ContainerOptions struct {
	AboveLayerID string
	BelowLayerID string
	Source       style.SourceOptions
	Drag         *DragController
	Events       events.Publisher
}

// Container holds annotations of every kind and routes each to the manager
// of its key, creating managers on first use and destroying them once
// their last annotation leaves. Ids are container-wide and survive
// manager rebuilds.
type Container struct {
	m    Map
	opts ContainerOptions
	log  *logrus.Entry

	annotations map[int64]*Annotation
	nextID      int64
	managers    map[Key]*Manager
	unsubscribe func()
	destroyed   bool

	clickListeners     listeners[ClickListener]
	longClickListeners listeners[LongClickListener]
	dragListeners      listeners[DragListener]
}

// NewContainer creates an empty container. The style does not need to be
// loaded; annotations added before it is are rendered once it loads.
func NewContainer(m Map, opts ContainerOptions) (*Container, error) {
	if opts.AboveLayerID != "" && opts.BelowLayerID != "" {
		return nil, ErrConflictingPlacement
	}
	c := &Container{
		m:           m,
		opts:        opts,
		log:         logrus.WithField("component", "container"),
		annotations: make(map[int64]*Annotation),
		managers:    make(map[Key]*Manager),
	}
	c.unsubscribe = m.OnStyleLoaded(func(*style.Style) {
		if err := c.UpdateAll(); err != nil {
			c.log.WithError(err).Error("Could not rebuild managers after style load")
		}
	})
	return c, nil
}

func (c *Container) styleLoaded() bool {
	s := c.m.Style()
	return s != nil && s.FullyLoaded()
}

// Add takes ownership of a and renders it through the manager of its key.
// An annotation can be added to one owner only, once.
func (c *Container) Add(a *Annotation) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if err := a.attach(c, c.nextID); err != nil {
		return err
	}
	c.nextID++
	c.annotations[a.id] = a
	c.publish(events.Created, a)

	if !c.styleLoaded() {
		c.log.WithField("annotation_id", a.id).Debug("Style not loaded, annotation queued")
		return nil
	}
	return c.route(a)
}

// route hands a to the manager of its key, creating that manager if needed.
// A failed manager creation leaves a held; the next UpdateAll retries it.
func (c *Container) route(a *Annotation) error {
	key := a.Key()
	mgr, ok := c.managers[key]
	if !ok {
		var err error
		mgr, err = newManager(c.m, a.kind, ManagerOptions{
			AboveLayerID: c.opts.AboveLayerID,
			BelowLayerID: c.opts.BelowLayerID,
			Source:       c.opts.Source,
			Layout:       a.layoutValues(),
			Drag:         c.opts.Drag,
			Events:       c.opts.Events,
		}, true)
		if err != nil {
			return fmt.Errorf("manager for %s: %w", key, err)
		}
		for _, l := range c.clickListeners.snapshot() {
			mgr.AddClickListener(l)
		}
		for _, l := range c.longClickListeners.snapshot() {
			mgr.AddLongClickListener(l)
		}
		for _, l := range c.dragListeners.snapshot() {
			mgr.AddDragListener(l)
		}
		c.managers[key] = mgr
		c.log.WithFields(logrus.Fields{"key": key.String(), "layer": mgr.LayerID()}).Debug("Manager created")
	}
	return mgr.add(a)
}

// Update re-renders a held annotation. Its key must not have changed since
// it was added.
func (c *Container) Update(a *Annotation) error {
	if cur, ok := c.annotations[a.id]; !ok || cur != a {
		c.log.WithField("annotation_id", a.id).Warn("Rejected update of untracked annotation")
		return fmt.Errorf("annotation %d: %w", a.id, ErrNotTracked)
	}
	c.publish(events.Updated, a)
	if !c.styleLoaded() {
		return nil
	}
	mgr, ok := c.managers[a.Key()]
	if !ok {
		return c.route(a)
	}
	return mgr.Update(a)
}

func (c *Container) annotationChanged(a *Annotation) {
	if err := c.Update(a); err != nil {
		c.log.WithError(err).Debug("Change not rendered")
	}
}

// Remove deletes a and destroys its manager when no other annotation
// shares the key. Removing an annotation that is not held is a no-op.
func (c *Container) Remove(a *Annotation) {
	if cur, ok := c.annotations[a.id]; !ok || cur != a {
		c.log.WithField("annotation_id", a.id).Debug("Ignoring remove of untracked annotation")
		return
	}
	delete(c.annotations, a.id)

	key := a.Key()
	if mgr, ok := c.managers[key]; ok {
		mgr.Delete(a)
		if mgr.Len() == 0 {
			c.destroyManager(key, mgr)
		}
	} else if c.opts.Drag != nil {
		c.opts.Drag.onAnnotationDeleted(a)
	}
	c.publish(events.Deleted, a)
}

// UpdateAll destroys every manager and rebuilds them from the held
// annotations. It runs after every style load.
func (c *Container) UpdateAll() error {
	for key, mgr := range c.managers {
		c.destroyManager(key, mgr)
	}
	if c.destroyed || !c.styleLoaded() {
		return nil
	}
	var errs []error
	for _, a := range c.Annotations() {
		if err := c.route(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear destroys every manager and drops every annotation.
func (c *Container) Clear() {
	for key, mgr := range c.managers {
		c.destroyManager(key, mgr)
	}
	c.annotations = make(map[int64]*Annotation)
	if c.opts.Events != nil {
		c.opts.Events.Publish(events.Event{Action: events.Cleared, ID: -1})
	}
}

// Destroy clears the container and stops following style loads.
func (c *Container) Destroy() {
	if c.destroyed {
		return
	}
	c.Clear()
	c.destroyed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Container) destroyManager(key Key, mgr *Manager) {
	mgr.Destroy()
	mgr.removeFromStyle()
	delete(c.managers, key)
	c.log.WithField("layer", mgr.LayerID()).Debug("Manager removed")
}

// Len returns the number of held annotations.
func (c *Container) Len() int { return len(c.annotations) }

// Get returns the held annotation with the given id.
func (c *Container) Get(id int64) (*Annotation, bool) {
	a, ok := c.annotations[id]
	return a, ok
}

// Annotations returns the held annotations ordered by id.
func (c *Container) Annotations() []*Annotation {
	out := make([]*Annotation, 0, len(c.annotations))
	for _, a := range c.annotations {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Managers returns the live managers ordered by layer id.
func (c *Container) Managers() []*Manager {
	out := make([]*Manager, 0, len(c.managers))
	for _, mgr := range c.managers {
		out = append(out, mgr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LayerID() < out[j].LayerID() })
	return out
}

// ManagerFor returns the manager rendering a, if any.
func (c *Container) ManagerFor(a *Annotation) (*Manager, bool) {
	if cur, ok := c.annotations[a.id]; !ok || cur != a {
		return nil, false
	}
	mgr, ok := c.managers[a.Key()]
	return mgr, ok
}

// AddClickListener registers a click listener on every manager, current
// and future.
func (c *Container) AddClickListener(l ClickListener) {
	c.clickListeners.add(l)
	for _, mgr := range c.managers {
		mgr.AddClickListener(l)
	}
}

// RemoveClickListener unregisters a click listener.
func (c *Container) RemoveClickListener(l ClickListener) {
	c.clickListeners.remove(l)
	for _, mgr := range c.managers {
		mgr.RemoveClickListener(l)
	}
}

// AddLongClickListener registers a long-click listener on every manager.
func (c *Container) AddLongClickListener(l LongClickListener) {
	c.longClickListeners.add(l)
	for _, mgr := range c.managers {
		mgr.AddLongClickListener(l)
	}
}

// RemoveLongClickListener unregisters a long-click listener.
func (c *Container) RemoveLongClickListener(l LongClickListener) {
	c.longClickListeners.remove(l)
	for _, mgr := range c.managers {
		mgr.RemoveLongClickListener(l)
	}
}

// AddDragListener registers a drag listener on every manager.
func (c *Container) AddDragListener(l DragListener) {
	c.dragListeners.add(l)
	for _, mgr := range c.managers {
		mgr.AddDragListener(l)
	}
}

// RemoveDragListener unregisters a drag listener.
func (c *Container) RemoveDragListener(l DragListener) {
	c.dragListeners.remove(l)
	for _, mgr := range c.managers {
		mgr.RemoveDragListener(l)
	}
}

func (c *Container) publish(action string, a *Annotation) {
	if c.opts.Events == nil {
		return
	}
	c.opts.Events.Publish(events.Event{Kind: a.kind.String(), Action: action, ID: a.id})
}
