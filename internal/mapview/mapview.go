// Package mapview is the map-session context the annotation core runs
// against: the current style, the camera, a deferred-execution primitive,
// and map-wide click and gesture dispatch.
package mapview

import (
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/style"
)

type styleSubscription struct {
	fn     func(*style.Style)
	active bool
}

// Map is one map view. Like a UI view it is confined to a single loop.
type Map struct {
	style    *style.Style
	viewport *projection.Viewport
	poster   scheduler.Poster

	clickListeners     []ClickListener
	longClickListeners []LongClickListener
	moveListeners      []MoveListener
	styleSubs          []*styleSubscription

	captured MoveListener
	moving   bool
}

// New creates a map view with no style.
func New(viewport *projection.Viewport, poster scheduler.Poster) *Map {
	return &Map{
		viewport: viewport,
		poster:   poster,
	}
}

// Style returns the current style, which may be nil or still loading.
func (m *Map) Style() *style.Style {
	return m.style
}

// Projection returns the camera.
func (m *Map) Projection() *projection.Viewport {
	return m.viewport
}

// Post defers fn until after the current pass.
func (m *Map) Post(fn func()) {
	m.poster.Post(fn)
}

// SetStyle swaps in a new style object. A style that is already loaded is
// announced immediately; otherwise it is loaded on the next pass.
func (m *Map) SetStyle(s *style.Style) {
	m.style = s
	if s.FullyLoaded() {
		m.notifyStyleLoaded(s)
		return
	}
	m.finishLoading(s)
}

// ReloadStyle re-parses the current style in place. Runtime sources and
// layers are dropped and listeners are told once loading completes.
func (m *Map) ReloadStyle() {
	if m.style == nil {
		return
	}
	m.style.MarkLoading()
	m.finishLoading(m.style)
}

func (m *Map) finishLoading(s *style.Style) {
	m.poster.Post(func() {
		if m.style != s {
			return
		}
		s.MarkLoaded()
		m.notifyStyleLoaded(s)
	})
}

func (m *Map) notifyStyleLoaded(s *style.Style) {
	logrus.WithField("style", s.Name()).Debug("Style loaded")
	subs := make([]*styleSubscription, len(m.styleSubs))
	copy(subs, m.styleSubs)
	for _, sub := range subs {
		if sub.active {
			sub.fn(s)
		}
	}
}

// OnStyleLoaded registers fn for every future style load completion.
func (m *Map) OnStyleLoaded(fn func(*style.Style)) (unsubscribe func()) {
	sub := &styleSubscription{fn: fn, active: true}
	m.styleSubs = append(m.styleSubs, sub)
	return func() {
		sub.active = false
		for i, s := range m.styleSubs {
			if s == sub {
				m.styleSubs = append(m.styleSubs[:i], m.styleSubs[i+1:]...)
				return
			}
		}
	}
}

// AddOnMapClickListener registers a click listener.
func (m *Map) AddOnMapClickListener(l ClickListener) {
	m.clickListeners = append(m.clickListeners, l)
}

// RemoveOnMapClickListener unregisters a click listener. Unknown listeners
// are ignored.
func (m *Map) RemoveOnMapClickListener(l ClickListener) {
	for i, c := range m.clickListeners {
		if c == l {
			m.clickListeners = append(m.clickListeners[:i], m.clickListeners[i+1:]...)
			return
		}
	}
}

// AddOnMapLongClickListener registers a long-click listener.
func (m *Map) AddOnMapLongClickListener(l LongClickListener) {
	m.longClickListeners = append(m.longClickListeners, l)
}

// RemoveOnMapLongClickListener unregisters a long-click listener.
func (m *Map) RemoveOnMapLongClickListener(l LongClickListener) {
	for i, c := range m.longClickListeners {
		if c == l {
			m.longClickListeners = append(m.longClickListeners[:i], m.longClickListeners[i+1:]...)
			return
		}
	}
}

// AddMoveListener registers a pan gesture listener.
func (m *Map) AddMoveListener(l MoveListener) {
	m.moveListeners = append(m.moveListeners, l)
}

// RemoveMoveListener unregisters a pan gesture listener.
func (m *Map) RemoveMoveListener(l MoveListener) {
	if m.captured == l {
		m.captured = nil
	}
	for i, c := range m.moveListeners {
		if c == l {
			m.moveListeners = append(m.moveListeners[:i], m.moveListeners[i+1:]...)
			return
		}
	}
}

// Click dispatches a click in registration order until one listener
// consumes it.
func (m *Map) Click(pt projection.ScreenPoint) bool {
	listeners := make([]ClickListener, len(m.clickListeners))
	copy(listeners, m.clickListeners)
	for _, l := range listeners {
		if l.OnMapClick(pt) {
			return true
		}
	}
	return false
}

// LongClick dispatches a long click like Click.
func (m *Map) LongClick(pt projection.ScreenPoint) bool {
	listeners := make([]LongClickListener, len(m.longClickListeners))
	copy(listeners, m.longClickListeners)
	for _, l := range listeners {
		if l.OnMapLongClick(pt) {
			return true
		}
	}
	return false
}

// BeginMove starts a pan gesture. It reports whether a listener captured it.
func (m *Map) BeginMove(g MoveGesture) bool {
	m.moving = true
	m.captured = nil
	listeners := make([]MoveListener, len(m.moveListeners))
	copy(listeners, m.moveListeners)
	for _, l := range listeners {
		if l.OnMoveBegin(g) {
			m.captured = l
			return true
		}
	}
	return false
}

// Move continues a pan gesture. Unconsumed moves pan the camera, including
// those the capturing listener declines.
func (m *Map) Move(g MoveGesture) bool {
	if !m.moving {
		return false
	}
	if l := m.captured; l != nil {
		consumed := l.OnMove(g)
		if c, ok := l.(MoveCapturer); ok && !c.Capturing() {
			m.captured = nil
		}
		if consumed {
			return true
		}
		m.viewport.Pan(g.DeltaX, g.DeltaY)
		return false
	}
	listeners := make([]MoveListener, len(m.moveListeners))
	copy(listeners, m.moveListeners)
	for _, l := range listeners {
		if l.OnMove(g) {
			return true
		}
	}
	m.viewport.Pan(g.DeltaX, g.DeltaY)
	return false
}

// EndMove finishes a pan gesture.
func (m *Map) EndMove(g MoveGesture) {
	if !m.moving {
		return
	}
	m.moving = false
	m.captured = nil
	listeners := make([]MoveListener, len(m.moveListeners))
	copy(listeners, m.moveListeners)
	for _, l := range listeners {
		l.OnMoveEnd(g)
	}
}

// ToScreenLocation is a shorthand for Projection().ToScreenLocation.
func (m *Map) ToScreenLocation(p orb.Point) projection.ScreenPoint {
	return m.viewport.ToScreenLocation(p)
}

// FromScreenLocation is a shorthand for Projection().FromScreenLocation.
func (m *Map) FromScreenLocation(s projection.ScreenPoint) orb.Point {
	return m.viewport.FromScreenLocation(s)
}
