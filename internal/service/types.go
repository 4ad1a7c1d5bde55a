// Package service hosts annotation map sessions for the HTTP API.
package service

import (
	"time"

	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scene"
)

// SessionConfig describes a session to create.
type SessionConfig struct {
	Name     string         `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Harbour survey"`
	Style    string         `json:"style,omitempty" doc:"Name of the base style" example:"streets" default:"default"`
	Viewport scene.Viewport `json:"viewport,omitempty" doc:"Initial camera"`
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID          string              `json:"id" doc:"Session identifier (ULID)"`
	Name        string              `json:"name" doc:"Display name"`
	Style       string              `json:"style" doc:"Name of the current style"`
	CreatedAt   time.Time           `json:"createdAt"`
	Viewport    projection.Viewport `json:"viewport"`
	Annotations int                 `json:"annotations" doc:"Number of annotations"`
	Layers      []string            `json:"layers" doc:"Annotation layer ids in draw order"`
}

// AnnotationPatch changes an existing annotation. Absent fields are left
// alone; a null property value reverts the property to its default.
type AnnotationPatch struct {
	Geometry   map[string]any `json:"geometry,omitempty" doc:"Replacement GeoJSON geometry"`
	Properties map[string]any `json:"properties,omitempty" doc:"Properties to set; null unsets"`
	Draggable  *bool          `json:"draggable,omitempty"`
	ZIndex     *int           `json:"zIndex,omitempty"`
}

// DragRequest simulates a one-finger drag from From to To.
type DragRequest struct {
	From  projection.ScreenPoint `json:"from" doc:"Screen position where the pointer goes down"`
	To    projection.ScreenPoint `json:"to" doc:"Screen position where the pointer is lifted"`
	Steps int                    `json:"steps,omitempty" minimum:"1" maximum:"100" default:"1" doc:"Number of move events between From and To"`
}

// DragResult reports what a drag did.
type DragResult struct {
	Dragged *scene.Annotation   `json:"dragged,omitempty" doc:"The annotation that was dragged, if any"`
	Camera  projection.Viewport `json:"camera" doc:"Camera after the gesture; unchanged when an annotation was dragged"`
}

// ArchiveFile is an exported PMTiles archive.
type ArchiveFile struct {
	Name string `json:"name" doc:"Archive file name" example:"01J9Z3.pmtiles"`
	Size string `json:"size" doc:"Human-readable file size" example:"5.4 KB"`
}

type sessionRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Style     string         `json:"style"`
	CreatedAt time.Time      `json:"createdAt"`
	Viewport  scene.Viewport `json:"viewport"`
}

// SourceFile is a GeoJSON file that can be imported into a session.
type SourceFile struct {
	Name string `json:"name" doc:"File name" example:"harbour.geojson"`
	Size string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
}
