package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-annotate/internal/annotation"
	"github.com/joeblew999/plat-annotate/internal/scene"
)

// SourceService imports GeoJSON files from <data>/sources as annotations.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// List returns all importable source files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() || !isGeoJSON(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Name: entry.Name(),
			Size: formatSize(info.Size()),
		})
	}
	return files, nil
}

// Import adds every feature of a source file to sess. Points become
// circles, lines become lines and polygons become fills; multi-geometries
// are split. Feature properties named like a rendering property of the
// resulting kind are applied, the rest are dropped.
func (s *SourceService) Import(ctx context.Context, sess *Session, name string) ([]scene.Annotation, error) {
	if name != filepath.Base(name) || !isGeoJSON(name) {
		return nil, fmt.Errorf("source file %q: %w", name, os.ErrNotExist)
	}
	data, err := os.ReadFile(filepath.Join(s.sourcesDir, name))
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	var specs []scene.Annotation
	for _, f := range fc.Features {
		specs = append(specs, specsFor(f)...)
	}
	return sess.AddAnnotations(ctx, specs)
}

func specsFor(f *geojson.Feature) []scene.Annotation {
	var parts []orb.Geometry
	switch g := f.Geometry.(type) {
	case orb.MultiPoint:
		for _, p := range g {
			parts = append(parts, p)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			parts = append(parts, ls)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			parts = append(parts, p)
		}
	default:
		parts = append(parts, g)
	}

	var specs []scene.Annotation
	for _, g := range parts {
		var k annotation.Kind
		switch g.(type) {
		case orb.Point:
			k = annotation.KindCircle
		case orb.LineString:
			k = annotation.KindLine
		case orb.Polygon:
			k = annotation.KindFill
		default:
			continue
		}
		specs = append(specs, scene.Annotation{
			Kind:       k.String(),
			Geometry:   scene.EncodeGeometry(g),
			Properties: knownProperties(k, f.Properties),
		})
	}
	return specs
}

func knownProperties(k annotation.Kind, props geojson.Properties) map[string]any {
	out := make(map[string]any)
	for _, names := range [][]string{annotation.DataDrivenProperties(k), annotation.LayoutProperties(k)} {
		for _, name := range names {
			if v, ok := props[name]; ok && name != k.SortKeyProperty() {
				out[name] = v
			}
		}
	}
	return out
}

func isGeoJSON(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}
