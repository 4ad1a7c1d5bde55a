package style

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layerIDs(s *Style) []string {
	var ids []string
	for _, l := range s.Layers() {
		ids = append(ids, l.ID())
	}
	return ids
}

func TestStyle_LayerPlacement(t *testing.T) {
	s := New("test")
	s.MarkLoaded()

	require.NoError(t, s.AddLayer(NewLayer("a", LayerFill, "src")))
	require.NoError(t, s.AddLayer(NewLayer("c", LayerFill, "src")))
	require.NoError(t, s.AddLayerAbove(NewLayer("b", LayerFill, "src"), "a"))
	require.NoError(t, s.AddLayerBelow(NewLayer("z", LayerFill, "src"), "a"))

	assert.Equal(t, []string{"z", "a", "b", "c"}, layerIDs(s))

	err := s.AddLayerAbove(NewLayer("x", LayerFill, "src"), "missing")
	assert.ErrorIs(t, err, ErrLayerNotFound)
}

func TestStyle_CollisionsKeepExisting(t *testing.T) {
	s := New("test")

	first := NewGeoJSONSource("src", SourceOptions{MaxZoom: 14})
	require.NoError(t, s.AddSource(first))

	err := s.AddSource(NewGeoJSONSource("src", SourceOptions{MaxZoom: 3}))
	assert.ErrorIs(t, err, ErrSourceExists)

	got, ok := s.Source("src")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 14, got.Options().MaxZoom)

	layer := NewLayer("l", LayerCircle, "src")
	require.NoError(t, s.AddLayer(layer))
	assert.ErrorIs(t, s.AddLayer(NewLayer("l", LayerLine, "src")), ErrLayerExists)

	gotLayer, ok := s.Layer("l")
	require.True(t, ok)
	assert.Same(t, layer, gotLayer)
}

func TestStyle_RemoveSourceInUse(t *testing.T) {
	s := New("test")
	require.NoError(t, s.AddSource(NewGeoJSONSource("src", SourceOptions{})))
	require.NoError(t, s.AddLayer(NewLayer("l", LayerCircle, "src")))

	assert.ErrorIs(t, s.RemoveSource("src"), ErrSourceInUse)
	require.NoError(t, s.RemoveLayer("l"))
	require.NoError(t, s.RemoveSource("src"))
	assert.ErrorIs(t, s.RemoveSource("src"), ErrSourceNotFound)
	assert.ErrorIs(t, s.RemoveLayer("l"), ErrLayerNotFound)
}

func TestStyle_MarkLoadingDropsRuntimeContent(t *testing.T) {
	s := New("test")
	s.MarkLoaded()
	require.NoError(t, s.AddSource(NewGeoJSONSource("src", SourceOptions{})))
	require.NoError(t, s.AddLayer(NewLayer("l", LayerCircle, "src")))
	s.AddImage("pin", image.NewRGBA(image.Rect(0, 0, 1, 1)))

	s.MarkLoading()

	assert.False(t, s.FullyLoaded())
	assert.Empty(t, s.Sources())
	assert.Empty(t, s.Layers())
	assert.True(t, s.HasImage("pin"))
}

func TestGeoJSONSource_Revision(t *testing.T) {
	src := NewGeoJSONSource("src", SourceOptions{})
	assert.Equal(t, 0, src.Revision())
	assert.Empty(t, src.FeatureCollection().Features)

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	src.SetFeatureCollection(fc)

	assert.Equal(t, 1, src.Revision())
	assert.Len(t, src.FeatureCollection().Features, 1)
}

func TestStyle_MarshalJSON(t *testing.T) {
	s := New("snapshot")
	s.MarkLoaded()
	require.NoError(t, s.AddSource(NewGeoJSONSource("src", SourceOptions{})))
	l := NewLayer("l", LayerCircle, "src")
	l.SetProperty("circle-radius", Get("circle-radius"))
	l.SetFilter(Eq("kind", "poi"))
	require.NoError(t, s.AddLayer(l))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var doc struct {
		Version int                        `json:"version"`
		Sources map[string]json.RawMessage `json:"sources"`
		Layers  []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
			Filter     []any          `json:"filter"`
		} `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 8, doc.Version)
	assert.Contains(t, doc.Sources, "src")
	require.Len(t, doc.Layers, 1)
	assert.Equal(t, []any{"get", "circle-radius"}, doc.Layers[0].Properties["circle-radius"])
	assert.Equal(t, "==", doc.Layers[0].Filter[0])
}
