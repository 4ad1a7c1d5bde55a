package annotation

import (
	"image"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-annotate/internal/mapview"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/style"
)

// newTestMap returns an 800x600 map centred on (0, 0) with a loaded style.
// Deferred work waits in the returned queue.
func newTestMap(t *testing.T, zoom float64) (*mapview.Map, *scheduler.Queue) {
	t.Helper()
	q := scheduler.NewQueue()
	m := mapview.New(projection.NewViewport(orb.Point{0, 0}, zoom, 800, 600), q)
	s := style.New("test")
	s.MarkLoaded()
	m.SetStyle(s)
	return m, q
}

func newCircleManager(t *testing.T, m *mapview.Map, opts ManagerOptions) *Manager {
	t.Helper()
	mgr, err := NewManager(m, KindCircle, opts)
	require.NoError(t, err)
	return mgr
}

func sourceOf(t *testing.T, m *mapview.Map, id string) *style.GeoJSONSource {
	t.Helper()
	src, ok := m.Style().Source(id)
	require.True(t, ok, "source %s missing", id)
	return src
}

func features(t *testing.T, m *mapview.Map, id string) []*geojson.Feature {
	t.Helper()
	fc := sourceOf(t, m, id).FeatureCollection()
	if fc == nil {
		return nil
	}
	return fc.Features
}

type recordingClick struct {
	calls   []*Annotation
	consume bool
}

func (r *recordingClick) OnAnnotationClick(a *Annotation) bool {
	r.calls = append(r.calls, a)
	return r.consume
}

func (r *recordingClick) OnAnnotationLongClick(a *Annotation) bool {
	r.calls = append(r.calls, a)
	return r.consume
}

type recordingDrag struct {
	started, dragged, finished []*Annotation
}

func (r *recordingDrag) OnAnnotationDragStarted(a *Annotation)  { r.started = append(r.started, a) }
func (r *recordingDrag) OnAnnotationDrag(a *Annotation)         { r.dragged = append(r.dragged, a) }
func (r *recordingDrag) OnAnnotationDragFinished(a *Annotation) { r.finished = append(r.finished, a) }

func testBitmap() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}
