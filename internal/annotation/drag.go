package annotation

import (
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
)

// DragConfig describes the touch area drags are confined to.
type DragConfig struct {
	// ShiftX and ShiftY offset pointer positions into the touch area.
	ShiftX float64
	ShiftY float64
	// MaxX and MaxY bound the touch area. Zero means the viewport size.
	MaxX float64
	MaxY float64
}

// DragController coordinates annotation drags for one map. It holds at
// most one drag session, owned by the manager whose annotation was hit.
type DragController struct {
	m        Map
	cfg      DragConfig
	managers []*Manager
	attached bool

	dragged *Annotation
	owner   *Manager
}

// NewDragController attaches a drag controller to the map's move gestures.
func NewDragController(m Map, cfg DragConfig) *DragController {
	d := &DragController{m: m, cfg: cfg}
	m.AddMoveListener(d)
	d.attached = true
	return d
}

// Detach stops listening to the map, ending any drag in progress.
func (d *DragController) Detach() {
	if !d.attached {
		return
	}
	d.stopDragging()
	d.m.RemoveMoveListener(d)
	d.attached = false
	d.managers = nil
}

// Dragging returns the annotation being dragged, or nil.
func (d *DragController) Dragging() *Annotation {
	return d.dragged
}

// Capturing reports whether a drag session holds the current gesture.
func (d *DragController) Capturing() bool {
	return d.dragged != nil
}

func (d *DragController) addManager(mgr *Manager) {
	for _, m := range d.managers {
		if m == mgr {
			return
		}
	}
	d.managers = append(d.managers, mgr)
}

func (d *DragController) removeManager(mgr *Manager) {
	for i, m := range d.managers {
		if m == mgr {
			d.managers = append(d.managers[:i], d.managers[i+1:]...)
			break
		}
	}
	if d.owner == mgr {
		d.stopDragging()
	}
}

// OnMoveBegin starts a drag when a single pointer lands on a draggable
// annotation of a registered manager.
func (d *DragController) OnMoveBegin(g mapview.MoveGesture) bool {
	if g.Pointers != 1 {
		return false
	}
	for _, mgr := range append([]*Manager(nil), d.managers...) {
		a := mgr.queryMapForFeatures(g.Focal)
		if a != nil && d.startDragging(a, mgr) {
			return true
		}
	}
	return false
}

// OnMove moves the dragged annotation. It reports whether the move was
// consumed; a move whose geometry would leave the Mercator range is not.
func (d *DragController) OnMove(g mapview.MoveGesture) bool {
	a := d.dragged
	if a == nil {
		return false
	}
	if g.Pointers > 1 || !a.Draggable() {
		d.stopDragging()
		return true
	}

	pt := projection.ScreenPoint{X: g.Current.X - d.cfg.ShiftX, Y: g.Current.Y - d.cfg.ShiftY}
	maxX, maxY := d.touchArea()
	if pt.X < 0 || pt.Y < 0 || pt.X > maxX || pt.Y > maxY {
		d.stopDragging()
		return true
	}

	geom, ok := a.offsetGeometry(d.m.Projection(), pt, g.DeltaX, g.DeltaY)
	if !ok {
		return false
	}
	a.geometry = geom
	d.owner.UpdateSource()
	d.owner.fireDrag(a)
	return true
}

// OnMoveEnd ends the drag session.
func (d *DragController) OnMoveEnd(mapview.MoveGesture) {
	d.stopDragging()
}

func (d *DragController) touchArea() (float64, float64) {
	maxX, maxY := d.cfg.MaxX, d.cfg.MaxY
	if v := d.m.Projection(); v != nil {
		if maxX == 0 {
			maxX = v.Width
		}
		if maxY == 0 {
			maxY = v.Height
		}
	}
	return maxX, maxY
}

func (d *DragController) startDragging(a *Annotation, mgr *Manager) bool {
	if !a.Draggable() {
		return false
	}
	d.dragged = a
	d.owner = mgr
	logrus.WithFields(logrus.Fields{
		"manager":       mgr.kind.String(),
		"annotation_id": a.id,
	}).Debug("Drag started")
	mgr.fireDragStarted(a)
	return true
}

func (d *DragController) stopDragging() {
	a, mgr := d.dragged, d.owner
	d.dragged = nil
	d.owner = nil
	if a == nil || mgr == nil {
		return
	}
	mgr.fireDragFinished(a)
}

// onAnnotationDeleted ends the session if a was being dragged.
func (d *DragController) onAnnotationDeleted(a *Annotation) {
	if d.dragged == a {
		d.stopDragging()
	}
}
