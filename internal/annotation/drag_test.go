package annotation

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
)

type dragFixture struct {
	m   *mapview.Map
	q   *scheduler.Queue
	d   *DragController
	mgr *Manager
	a   *Annotation
	rec *recordingDrag
}

// newDragFixture places a draggable circle at (0, 0), which is the centre
// (400, 300) of a zoom 0 map.
func newDragFixture(t *testing.T) *dragFixture {
	t.Helper()
	m, q := newTestMap(t, 0)
	d := NewDragController(m, DragConfig{})
	mgr := newCircleManager(t, m, ManagerOptions{Drag: d})
	rec := &recordingDrag{}
	mgr.AddDragListener(rec)
	a, err := mgr.Create(Options{Geometry: orb.Point{0, 0}, Draggable: true})
	require.NoError(t, err)
	q.Flush()
	return &dragFixture{m: m, q: q, d: d, mgr: mgr, a: a, rec: rec}
}

func (f *dragFixture) begin(t *testing.T) {
	t.Helper()
	centre := projection.ScreenPoint{X: 400, Y: 300}
	require.True(t, f.m.BeginMove(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
	require.Same(t, f.a, f.d.Dragging())
}

func TestDrag_Lifecycle(t *testing.T) {
	f := newDragFixture(t)
	centre := f.m.Projection().Center

	f.begin(t)
	assert.Equal(t, []*Annotation{f.a}, f.rec.started)

	assert.True(t, f.m.Move(mapview.MoveGesture{
		Pointers: 1,
		Current:  projection.ScreenPoint{X: 464, Y: 300},
		DeltaX:   64,
	}))
	assert.InDelta(t, 45.0, f.a.Geometry().(orb.Point)[0], 1e-9)
	assert.InDelta(t, 0.0, f.a.Geometry().(orb.Point)[1], 1e-9)
	assert.Equal(t, []*Annotation{f.a}, f.rec.dragged)
	assert.Equal(t, centre, f.m.Projection().Center, "a drag does not pan the camera")

	assert.Equal(t, 1, f.q.Len())
	f.q.Flush()
	assert.Equal(t, f.a.Geometry(), features(t, f.m, f.mgr.SourceID())[0].Geometry)

	f.m.EndMove(mapview.MoveGesture{Pointers: 1})
	assert.Equal(t, []*Annotation{f.a}, f.rec.finished)
	assert.Nil(t, f.d.Dragging())
}

func TestDrag_NotDraggableStaysIdle(t *testing.T) {
	f := newDragFixture(t)
	f.a.SetDraggable(false)
	f.q.Flush()

	centre := projection.ScreenPoint{X: 400, Y: 300}
	assert.False(t, f.m.BeginMove(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
	assert.Empty(t, f.rec.started)

	f.m.Move(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 450, Y: 300}, DeltaX: 50})
	assert.NotEqual(t, 0.0, f.m.Projection().Center[0], "the camera pans instead")
	assert.Equal(t, orb.Point{0, 0}, f.a.Geometry())
}

func TestDrag_MultiPointerBeginIgnored(t *testing.T) {
	f := newDragFixture(t)
	centre := projection.ScreenPoint{X: 400, Y: 300}
	assert.False(t, f.d.OnMoveBegin(mapview.MoveGesture{Pointers: 2, Focal: centre, Current: centre}))
	assert.Nil(t, f.d.Dragging())
}

func TestDrag_PastMercatorLimitIsNotConsumed(t *testing.T) {
	f := newDragFixture(t)
	f.begin(t)

	// y = 20 is above the top edge of the world square at zoom 0.
	consumed := f.d.OnMove(mapview.MoveGesture{
		Pointers: 1,
		Current:  projection.ScreenPoint{X: 400, Y: 20},
		DeltaY:   -280,
	})
	assert.False(t, consumed)
	assert.Equal(t, orb.Point{0, 0}, f.a.Geometry())
	assert.Empty(t, f.rec.dragged)
	assert.Same(t, f.a, f.d.Dragging(), "session survives a rejected step")
	assert.Zero(t, f.q.Len())
}

func TestDrag_RejectedStepPansCamera(t *testing.T) {
	f := newDragFixture(t)
	f.begin(t)
	centre := f.m.Projection().Center

	assert.False(t, f.m.Move(mapview.MoveGesture{
		Pointers: 1,
		Current:  projection.ScreenPoint{X: 400, Y: 20},
		DeltaY:   -280,
	}))
	assert.NotEqual(t, centre, f.m.Projection().Center)
	assert.Equal(t, orb.Point{0, 0}, f.a.Geometry())
	assert.Same(t, f.a, f.d.Dragging())
}

func TestDrag_GestureAfterSecondPointerPans(t *testing.T) {
	f := newDragFixture(t)
	f.begin(t)

	assert.True(t, f.m.Move(mapview.MoveGesture{Pointers: 2, Current: projection.ScreenPoint{X: 410, Y: 300}, DeltaX: 10}))
	assert.Nil(t, f.d.Dragging())
	assert.False(t, f.d.Capturing())

	centre := f.m.Projection().Center
	assert.False(t, f.m.Move(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 420, Y: 300}, DeltaX: 10}))
	assert.NotEqual(t, centre, f.m.Projection().Center)
	assert.Equal(t, orb.Point{0, 0}, f.a.Geometry())

	f.m.EndMove(mapview.MoveGesture{})
	assert.Len(t, f.rec.finished, 1)
}

func TestDrag_SecondPointerEndsSession(t *testing.T) {
	f := newDragFixture(t)
	f.begin(t)

	assert.True(t, f.d.OnMove(mapview.MoveGesture{Pointers: 2, Current: projection.ScreenPoint{X: 410, Y: 300}, DeltaX: 10}))
	assert.Len(t, f.rec.finished, 1)
	assert.Nil(t, f.d.Dragging())

	assert.False(t, f.d.OnMove(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 420, Y: 300}, DeltaX: 10}))
	f.m.EndMove(mapview.MoveGesture{})
	assert.Len(t, f.rec.finished, 1, "finished fires exactly once")
	assert.Equal(t, orb.Point{0, 0}, f.a.Geometry())
}

func TestDrag_StopConditions(t *testing.T) {
	tests := []struct {
		name string
		stop func(f *dragFixture) bool
	}{
		{"outside touch area", func(f *dragFixture) bool {
			return f.d.OnMove(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 900, Y: 300}, DeltaX: 500})
		}},
		{"draggable cleared", func(f *dragFixture) bool {
			f.a.SetDraggable(false)
			return f.d.OnMove(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 410, Y: 300}, DeltaX: 10})
		}},
		{"dragged annotation deleted", func(f *dragFixture) bool {
			f.mgr.Delete(f.a)
			return true
		}},
		{"manager destroyed", func(f *dragFixture) bool {
			f.mgr.Destroy()
			return true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDragFixture(t)
			f.begin(t)

			assert.True(t, tt.stop(f))
			assert.Len(t, f.rec.finished, 1)
			assert.Nil(t, f.d.Dragging())
		})
	}
}

func TestDrag_DeletingAnotherAnnotationKeepsSession(t *testing.T) {
	f := newDragFixture(t)
	other, err := f.mgr.Create(Options{Geometry: orb.Point{50, 50}})
	require.NoError(t, err)
	f.q.Flush()
	f.begin(t)

	f.mgr.Delete(other)
	assert.Empty(t, f.rec.finished)
	assert.Same(t, f.a, f.d.Dragging())
}

func TestDrag_TouchAreaShift(t *testing.T) {
	m, q := newTestMap(t, 0)
	d := NewDragController(m, DragConfig{ShiftX: 100, ShiftY: 0, MaxX: 800, MaxY: 600})
	mgr := newCircleManager(t, m, ManagerOptions{Drag: d})
	a, err := mgr.Create(Options{Geometry: orb.Point{0, 0}, Draggable: true})
	require.NoError(t, err)
	q.Flush()

	centre := projection.ScreenPoint{X: 400, Y: 300}
	require.True(t, d.OnMoveBegin(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
	require.True(t, d.OnMove(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 564, Y: 300}, DeltaX: 164}))
	assert.InDelta(t, 45.0, a.Geometry().(orb.Point)[0], 1e-9)
}

func TestDrag_FirstDraggableHitWins(t *testing.T) {
	m, q := newTestMap(t, 0)
	d := NewDragController(m, DragConfig{})
	first := newCircleManager(t, m, ManagerOptions{Drag: d})
	second := newCircleManager(t, m, ManagerOptions{Drag: d})
	firstRec, secondRec := &recordingDrag{}, &recordingDrag{}
	first.AddDragListener(firstRec)
	second.AddDragListener(secondRec)

	_, err := first.Create(Options{Geometry: orb.Point{0, 0}})
	require.NoError(t, err)
	b, err := second.Create(Options{Geometry: orb.Point{0, 0}, Draggable: true})
	require.NoError(t, err)
	q.Flush()

	centre := projection.ScreenPoint{X: 400, Y: 300}
	require.True(t, d.OnMoveBegin(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
	assert.Empty(t, firstRec.started)
	assert.Equal(t, []*Annotation{b}, secondRec.started)
}

func TestDrag_LineShiftsEveryVertex(t *testing.T) {
	m, q := newTestMap(t, 0)
	d := NewDragController(m, DragConfig{})
	mgr, err := NewManager(m, KindLine, ManagerOptions{Drag: d})
	require.NoError(t, err)
	a, err := mgr.Create(Options{Geometry: orb.LineString{{-10, 0}, {10, 0}}, Draggable: true})
	require.NoError(t, err)
	q.Flush()

	centre := projection.ScreenPoint{X: 400, Y: 300}
	require.True(t, d.OnMoveBegin(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
	require.True(t, d.OnMove(mapview.MoveGesture{Pointers: 1, Current: projection.ScreenPoint{X: 400, Y: 330}, DeltaY: 30}))

	ls := a.Geometry().(orb.LineString)
	for i, p := range ls {
		assert.InDelta(t, []float64{-10, 10}[i], p[0], 1e-9)
		assert.Less(t, p[1], 0.0)
		assert.InDelta(t, 330.0, m.ToScreenLocation(p).Y, 1e-6)
	}
}

func TestDrag_Detach(t *testing.T) {
	f := newDragFixture(t)
	f.begin(t)
	f.d.Detach()
	assert.Len(t, f.rec.finished, 1)

	centre := projection.ScreenPoint{X: 400, Y: 300}
	f.m.EndMove(mapview.MoveGesture{})
	assert.False(t, f.m.BeginMove(mapview.MoveGesture{Pointers: 1, Focal: centre, Current: centre}))
}
