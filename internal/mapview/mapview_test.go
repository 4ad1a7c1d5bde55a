package mapview

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/style"
)

type clickRecorder struct {
	name    string
	consume bool
	calls   *[]string
}

func (c *clickRecorder) OnMapClick(pt projection.ScreenPoint) bool {
	*c.calls = append(*c.calls, c.name)
	return c.consume
}

type moveRecorder struct {
	capture bool
	consume bool
	moves   int
	ends    int
}

func (r *moveRecorder) OnMoveBegin(g MoveGesture) bool { return r.capture }
func (r *moveRecorder) OnMove(g MoveGesture) bool     { r.moves++; return r.consume }
func (r *moveRecorder) OnMoveEnd(g MoveGesture)       { r.ends++ }

// releasingRecorder lets go of the gesture after its first move.
type releasingRecorder struct {
	moveRecorder
}

func (r *releasingRecorder) Capturing() bool { return r.moves == 0 }

func newTestMap(t *testing.T) (*Map, *scheduler.Queue) {
	t.Helper()
	q := scheduler.NewQueue()
	m := New(projection.NewViewport(orb.Point{0, 0}, 2, 800, 600), q)
	s := style.New("test")
	s.MarkLoaded()
	m.SetStyle(s)
	return m, q
}

func TestMap_ClickFirstConsumerWins(t *testing.T) {
	m, _ := newTestMap(t)
	var calls []string
	a := &clickRecorder{name: "a", calls: &calls}
	b := &clickRecorder{name: "b", consume: true, calls: &calls}
	c := &clickRecorder{name: "c", calls: &calls}
	m.AddOnMapClickListener(a)
	m.AddOnMapClickListener(b)
	m.AddOnMapClickListener(c)

	assert.True(t, m.Click(projection.ScreenPoint{X: 1, Y: 1}))
	assert.Equal(t, []string{"a", "b"}, calls)

	m.RemoveOnMapClickListener(b)
	m.RemoveOnMapClickListener(b)
	calls = nil
	assert.False(t, m.Click(projection.ScreenPoint{X: 1, Y: 1}))
	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestMap_ReloadStyleNotifiesAfterPass(t *testing.T) {
	m, q := newTestMap(t)
	var loads int
	unsubscribe := m.OnStyleLoaded(func(s *style.Style) { loads++ })

	m.ReloadStyle()
	assert.False(t, m.Style().FullyLoaded())
	assert.Equal(t, 0, loads)

	q.Flush()
	assert.True(t, m.Style().FullyLoaded())
	assert.Equal(t, 1, loads)

	unsubscribe()
	m.ReloadStyle()
	q.Flush()
	assert.Equal(t, 1, loads)
}

func TestMap_SetStyleSupersedesPendingLoad(t *testing.T) {
	m, q := newTestMap(t)
	var loaded []string
	m.OnStyleLoaded(func(s *style.Style) { loaded = append(loaded, s.Name()) })

	m.SetStyle(style.New("first"))
	m.SetStyle(style.New("second"))
	q.Flush()

	assert.Equal(t, []string{"second"}, loaded)
}

func TestMap_UncapturedMovePansCamera(t *testing.T) {
	m, _ := newTestMap(t)
	r := &moveRecorder{}
	m.AddMoveListener(r)
	target := orb.Point{10, 10}
	before := m.ToScreenLocation(target)

	assert.False(t, m.BeginMove(MoveGesture{Pointers: 1}))
	m.Move(MoveGesture{Pointers: 1, DeltaX: 25, DeltaY: 0})
	m.EndMove(MoveGesture{})

	after := m.ToScreenLocation(target)
	assert.InDelta(t, before.X+25, after.X, 1e-6)
	assert.Equal(t, 1, r.moves)
	assert.Equal(t, 1, r.ends)
}

func TestMap_CapturedMoveDoesNotPan(t *testing.T) {
	m, _ := newTestMap(t)
	r := &moveRecorder{capture: true, consume: true}
	m.AddMoveListener(r)
	center := m.Projection().Center

	assert.True(t, m.BeginMove(MoveGesture{Pointers: 1}))
	assert.True(t, m.Move(MoveGesture{Pointers: 1, DeltaX: 40}))
	m.EndMove(MoveGesture{})

	assert.Equal(t, center, m.Projection().Center)
	assert.Equal(t, 1, r.moves)
}

func TestMap_DeclinedCapturedMovePans(t *testing.T) {
	m, _ := newTestMap(t)
	r := &moveRecorder{capture: true}
	m.AddMoveListener(r)
	center := m.Projection().Center

	assert.True(t, m.BeginMove(MoveGesture{Pointers: 1}))
	assert.False(t, m.Move(MoveGesture{Pointers: 1, DeltaX: 40}))
	assert.NotEqual(t, center, m.Projection().Center)

	r.consume = true
	center = m.Projection().Center
	assert.True(t, m.Move(MoveGesture{Pointers: 1, DeltaX: 40}), "still captured")
	assert.Equal(t, center, m.Projection().Center)
	m.EndMove(MoveGesture{})
}

func TestMap_ReleasedGestureGoesToEveryListener(t *testing.T) {
	m, _ := newTestMap(t)
	holder := &releasingRecorder{moveRecorder{capture: true, consume: true}}
	other := &moveRecorder{}
	m.AddMoveListener(holder)
	m.AddMoveListener(other)

	assert.True(t, m.BeginMove(MoveGesture{Pointers: 1}))
	assert.True(t, m.Move(MoveGesture{Pointers: 2, DeltaX: 10}))
	assert.Zero(t, other.moves)

	holder.consume = false
	center := m.Projection().Center
	assert.False(t, m.Move(MoveGesture{Pointers: 1, DeltaX: 10}))
	assert.Equal(t, 1, other.moves)
	assert.NotEqual(t, center, m.Projection().Center)
	m.EndMove(MoveGesture{})
	assert.Equal(t, 1, other.ends)
}

func TestMap_QueryRenderedFeatures(t *testing.T) {
	m, _ := newTestMap(t)
	s := m.Style()

	src := style.NewGeoJSONSource("points", style.SourceOptions{})
	fc := geojson.NewFeatureCollection()
	low := geojson.NewFeature(orb.Point{0, 0})
	low.Properties["id"] = 0
	high := geojson.NewFeature(orb.Point{0, 0})
	high.Properties["id"] = 1
	high.Properties["kind"] = "hidden"
	fc.Append(low)
	fc.Append(high)
	src.SetFeatureCollection(fc)
	require.NoError(t, s.AddSource(src))

	circles := style.NewLayer("circles", style.LayerCircle, "points")
	circles.SetProperty("circle-radius", 10.0)
	require.NoError(t, s.AddLayer(circles))

	center := m.ToScreenLocation(orb.Point{0, 0})
	hits := m.QueryRenderedFeatures(center, "circles")
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Properties["id"])

	assert.Len(t, m.QueryRenderedFeatures(center.Add(9, 0), "circles"), 2)
	assert.Empty(t, m.QueryRenderedFeatures(center.Add(11, 0), "circles"))
	assert.Empty(t, m.QueryRenderedFeatures(center, "other"))

	circles.SetFilter(style.Expression{"!", style.Expression{"has", "kind"}})
	hits = m.QueryRenderedFeatures(center, "circles")
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Properties["id"])
}

func TestMap_QueryLinesAndFills(t *testing.T) {
	m, _ := newTestMap(t)
	s := m.Style()

	lines := style.NewGeoJSONSource("lines", style.SourceOptions{})
	lfc := geojson.NewFeatureCollection()
	lfc.Append(geojson.NewFeature(orb.LineString{{-10, 0}, {10, 0}}))
	lines.SetFeatureCollection(lfc)
	require.NoError(t, s.AddSource(lines))
	require.NoError(t, s.AddLayer(style.NewLayer("line-layer", style.LayerLine, "lines")))

	fills := style.NewGeoJSONSource("fills", style.SourceOptions{})
	ffc := geojson.NewFeatureCollection()
	ffc.Append(geojson.NewFeature(orb.Polygon{{{20, 20}, {30, 20}, {30, 30}, {20, 30}, {20, 20}}}))
	fills.SetFeatureCollection(ffc)
	require.NoError(t, s.AddSource(fills))
	require.NoError(t, s.AddLayer(style.NewLayer("fill-layer", style.LayerFill, "fills")))

	onLine := m.ToScreenLocation(orb.Point{5, 0})
	assert.Len(t, m.QueryRenderedFeatures(onLine, "line-layer"), 1)
	assert.Empty(t, m.QueryRenderedFeatures(onLine.Add(0, 20), "line-layer"))

	inside := m.ToScreenLocation(orb.Point{25, 25})
	assert.Len(t, m.QueryRenderedFeatures(inside, "fill-layer"), 1)
	outside := m.ToScreenLocation(orb.Point{35, 25})
	assert.Empty(t, m.QueryRenderedFeatures(outside, "fill-layer"))
}
