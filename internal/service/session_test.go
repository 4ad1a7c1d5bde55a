package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-annotate/internal/annotation"
	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scene"
)

var centre = projection.ScreenPoint{X: 400, Y: 300}

func newService(t *testing.T, dir string, bus *events.Bus) *SessionService {
	t.Helper()
	svc := NewSessionService(Config{
		DataDir:  dir,
		Bus:      bus,
		Viewport: scene.Viewport{Width: 800, Height: 600},
	})
	t.Cleanup(svc.Close)
	return svc
}

// seed creates a zoom 0 session with a draggable circle at the centre of
// the screen and a line further north.
func seed(t *testing.T, svc *SessionService) *Session {
	t.Helper()
	sess, err := svc.Create(SessionConfig{Name: "survey"})
	require.NoError(t, err)

	added, err := sess.AddAnnotations(context.Background(), []scene.Annotation{
		{Kind: "circle", Geometry: scene.EncodeGeometry(orb.Point{0, 0}), Draggable: true},
		{Kind: "line", Geometry: scene.EncodeGeometry(orb.LineString{{-10, 40}, {10, 40}})},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, int64(0), added[0].ID)
	assert.Equal(t, int64(1), added[1].ID)
	return sess
}

func TestSession_Info(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)

	info, err := sess.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "survey", info.Name)
	assert.Equal(t, "default", info.Style)
	assert.Equal(t, 2, info.Annotations)
	assert.Len(t, info.Layers, 2)
	assert.Equal(t, 800.0, info.Viewport.Width)
}

func TestSession_AddRejectsWholeBatch(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)
	ctx := context.Background()

	_, err := sess.AddAnnotations(ctx, []scene.Annotation{
		{Kind: "circle", Geometry: scene.EncodeGeometry(orb.Point{1, 1})},
		{Kind: "circle", Geometry: scene.EncodeGeometry(orb.LineString{{0, 0}, {1, 1}})},
	})
	assert.ErrorIs(t, err, annotation.ErrInvalidGeometry)

	all, err := sess.Annotations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSession_Update(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)
	ctx := context.Background()

	draggable := false
	z := 4
	got, err := sess.UpdateAnnotation(ctx, 0, AnnotationPatch{
		Properties: map[string]any{annotation.CircleColor: "#00ff00"},
		Draggable:  &draggable,
		ZIndex:     &z,
	})
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", got.Properties[annotation.CircleColor])
	assert.False(t, got.Draggable)
	assert.Equal(t, 4, got.ZIndex)

	got, err = sess.UpdateAnnotation(ctx, 0, AnnotationPatch{
		Properties: map[string]any{annotation.CircleColor: nil},
	})
	require.NoError(t, err)
	assert.NotContains(t, got.Properties, annotation.CircleColor)

	_, err = sess.UpdateAnnotation(ctx, 1, AnnotationPatch{
		Properties: map[string]any{annotation.LineCap: "round"},
	})
	assert.ErrorIs(t, err, annotation.ErrKeyLocked)

	_, err = sess.UpdateAnnotation(ctx, 99, AnnotationPatch{})
	assert.ErrorIs(t, err, annotation.ErrNotTracked)
}

func TestSession_ClickAndDrag(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)
	ctx := context.Background()

	hit, err := sess.Click(ctx, centre, false)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, int64(0), hit.ID)

	miss, err := sess.Click(ctx, projection.ScreenPoint{X: 10, Y: 590}, true)
	require.NoError(t, err)
	assert.Nil(t, miss)

	res, err := sess.Drag(ctx, DragRequest{From: centre, To: projection.ScreenPoint{X: 464, Y: 300}, Steps: 4})
	require.NoError(t, err)
	require.NotNil(t, res.Dragged)
	g, err := scene.DecodeGeometry(res.Dragged.Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, g.(orb.Point)[0], 1e-9)
	assert.Equal(t, orb.Point{0, 0}, res.Camera.Center, "dragging an annotation does not pan")

	res, err = sess.Drag(ctx, DragRequest{From: projection.ScreenPoint{X: 100, Y: 500}, To: projection.ScreenPoint{X: 164, Y: 500}})
	require.NoError(t, err)
	assert.Nil(t, res.Dragged)
	assert.NotEqual(t, 0.0, res.Camera.Center[0], "dragging empty map pans the camera")
}

func TestSession_ReloadStyle(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)
	ctx := context.Background()

	require.NoError(t, sess.ReloadStyle(ctx, ""))
	info, err := sess.Info(ctx)
	require.NoError(t, err)
	assert.Len(t, info.Layers, 2)

	require.NoError(t, sess.ReloadStyle(ctx, "night"))
	info, err = sess.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "night", info.Style)
	assert.Len(t, info.Layers, 2)

	hit, err := sess.Click(ctx, centre, false)
	require.NoError(t, err)
	require.NotNil(t, hit, "annotations render on the new style")
}

func TestSession_Tile(t *testing.T) {
	svc := newService(t, "", nil)
	sess := seed(t, svc)

	data, err := sess.Tile(context.Background(), maptile.New(0, 0, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestSessionService_PersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	svc := NewSessionService(Config{DataDir: dir, Viewport: scene.Viewport{Width: 800, Height: 600}})
	sess := seed(t, svc)
	ctx := context.Background()

	_, err := sess.Drag(ctx, DragRequest{From: centre, To: projection.ScreenPoint{X: 464, Y: 300}})
	require.NoError(t, err)
	require.NoError(t, sess.DeleteAnnotation(ctx, 1))
	assert.FileExists(t, filepath.Join(dir, "sessions", sess.ID+".geojson"))
	svc.Close()

	restored := newService(t, dir, nil)
	again, err := restored.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "survey", again.Name)

	all, err := again.Annotations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "circle", all[0].Kind)
	assert.True(t, all[0].Draggable)
	g, err := scene.DecodeGeometry(all[0].Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, g.(orb.Point)[0], 1e-9, "the drag result was saved")
}

func TestSessionService_ConcurrentChangesSaveLatestState(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, nil)
	sess := seed(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sess.AddAnnotations(ctx, []scene.Annotation{
				{Kind: "circle", Geometry: scene.EncodeGeometry(orb.Point{float64(i), 0})},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	raw, err := os.ReadFile(filepath.Join(dir, "sessions", sess.ID+".geojson"))
	require.NoError(t, err)
	saved, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	live, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, live.Features, 22)
	assert.Len(t, saved.Features, len(live.Features))
}

func TestSessionService_RestoreSkipsUnreadableFeatures(t *testing.T) {
	dir := t.TempDir()
	svc := NewSessionService(Config{DataDir: dir, Viewport: scene.Viewport{Width: 800, Height: 600}})
	sess := seed(t, svc)
	svc.Close()

	file := filepath.Join(dir, "sessions", sess.ID+".geojson")
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	fc.Features = append([]*geojson.Feature{geojson.NewFeature(orb.Point{5, 5})}, fc.Features...)
	raw, err = fc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0644))

	restored := newService(t, dir, nil)
	again, err := restored.Get(sess.ID)
	require.NoError(t, err)
	all, err := again.Annotations(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "circle", all[0].Kind)
	assert.Equal(t, "line", all[1].Kind)
}

func TestSessionService_StyleSwitchSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	svc := NewSessionService(Config{DataDir: dir, Viewport: scene.Viewport{Width: 800, Height: 600}})
	sess := seed(t, svc)
	ctx := context.Background()

	require.NoError(t, sess.ReloadStyle(ctx, "night"))
	svc.Close()

	restored := newService(t, dir, nil)
	again, err := restored.Get(sess.ID)
	require.NoError(t, err)
	info, err := again.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "night", info.Style)
	assert.Equal(t, 2, info.Annotations)
}

func TestSessionService_Delete(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, nil)
	sess := seed(t, svc)
	ctx := context.Background()

	require.Len(t, svc.List(), 1)
	require.NoError(t, svc.Delete(ctx, sess.ID))
	assert.Empty(t, svc.List())
	_, err := svc.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, sess.ID), ErrSessionNotFound)

	_, err = os.Stat(filepath.Join(dir, "sessions", sess.ID+".geojson"))
	assert.True(t, os.IsNotExist(err))
}

func TestSessionService_EventsCarrySession(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()
	svc := newService(t, "", bus)
	sess := seed(t, svc)

	for _, id := range []int64{0, 1} {
		select {
		case e := <-ch:
			assert.Equal(t, events.Event{Session: sess.ID, Kind: []string{"circle", "line"}[id], Action: events.Created, ID: id}, e)
		case <-time.After(time.Second):
			t.Fatal("no event")
		}
	}
}

func TestSourceService_Import(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, nil)
	sess, err := svc.Create(SessionConfig{Name: "import"})
	require.NoError(t, err)

	sources := NewSourceService(dir)
	require.NoError(t, os.MkdirAll(sources.SourcesDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sources.SourcesDir(), "harbour.geojson"), []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "MultiPoint", "coordinates": [[0, 0], [1, 1]]}, "properties": {"circle-radius": 9, "name": "buoy"}},
			{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 0]]]}, "properties": {"fill-color": "#0000ff"}}
		]
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sources.SourcesDir(), "notes.txt"), []byte("x"), 0644))

	files, err := sources.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "harbour.geojson", files[0].Name)

	added, err := sources.Import(context.Background(), sess, "harbour.geojson")
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.Equal(t, "circle", added[0].Kind)
	assert.Equal(t, 9.0, added[1].Properties[annotation.CircleRadius])
	assert.NotContains(t, added[0].Properties, "name")
	assert.Equal(t, "fill", added[2].Kind)

	_, err = sources.Import(context.Background(), sess, "../sessions.json")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchiveService_Export(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, nil)
	sess := seed(t, svc)
	archives := NewArchiveService(dir)

	files, err := archives.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	f, err := archives.Export(context.Background(), sess, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, sess.ID+".pmtiles", f.Name)

	files, err = archives.List()
	require.NoError(t, err)
	assert.Equal(t, []ArchiveFile{f}, files)

	p, ok := archives.Path(f.Name)
	require.True(t, ok)
	assert.FileExists(t, p)
	_, ok = archives.Path("../sessions.json")
	assert.False(t, ok)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
