package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/service"
	"github.com/joeblew999/plat-annotate/internal/tiler"
)

type TileInput struct {
	SessionIDInput
	Z int `path:"z" minimum:"0" maximum:"14" doc:"Zoom level"`
	X int `path:"x" minimum:"0" doc:"Tile column"`
	Y int `path:"y" minimum:"0" doc:"Tile row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

type ArchivesOutput struct {
	Body []service.ArchiveFile
}

type ExportInput struct {
	SessionIDInput
	Body struct {
		MinZoom int `json:"minZoom,omitempty" minimum:"0" maximum:"14" default:"0"`
		MaxZoom int `json:"maxZoom,omitempty" minimum:"0" maximum:"14" default:"10"`
	}
}

type SourcesOutput struct {
	Body []service.SourceFile
}

type ImportInput struct {
	SessionIDInput
	Body struct {
		File string `json:"file" minLength:"1" doc:"Source file name" example:"harbour.geojson"`
	}
}

// RegisterTiles registers vector tile and archive routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("tiles"))
	huma.Post(api, "/api/v1/sessions/{id}/archive", h.ExportArchive, huma.OperationTags("tiles"))
	huma.Get(api, "/api/v1/archives", h.GetArchives, huma.OperationTags("tiles"))
}

// RegisterSources registers GeoJSON source routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
	huma.Post(api, "/api/v1/sessions/{id}/import", h.ImportSource, huma.OperationTags("sources"))
}

// GetTile returns one gzipped Mapbox vector tile of the session's
// annotations, or 204 when no annotation touches the tile.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	n := 1 << uint(input.Z)
	if input.Z > tiler.MaxZoom || input.X >= n || input.Y >= n {
		return nil, huma.Error404NotFound("tile outside the zoom level")
	}

	data, err := sess.Tile(ctx, maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z)))
	if err != nil {
		return nil, problem(err)
	}
	if len(data) == 0 {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

func (h *APIHandler) ExportArchive(ctx context.Context, input *ExportInput) (*struct{ Body service.ArchiveFile }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.MinZoom > input.Body.MaxZoom {
		return nil, huma.Error422UnprocessableEntity("minZoom is greater than maxZoom")
	}
	f, err := h.svc.Archives.Export(ctx, sess, input.Body.MinZoom, input.Body.MaxZoom)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body service.ArchiveFile }{Body: f}, nil
}

func (h *APIHandler) GetArchives(ctx context.Context, input *struct{}) (*ArchivesOutput, error) {
	files, err := h.svc.Archives.List()
	if err != nil {
		return nil, problem(err)
	}
	return &ArchivesOutput{Body: files}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*SourcesOutput, error) {
	files, err := h.svc.Sources.List()
	if err != nil {
		return nil, problem(err)
	}
	return &SourcesOutput{Body: files}, nil
}

func (h *APIHandler) ImportSource(ctx context.Context, input *ImportInput) (*AnnotationsOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	added, err := h.svc.Sources.Import(ctx, sess, input.Body.File)
	if err != nil {
		return nil, problem(err)
	}
	if added == nil {
		added = []scene.Annotation{}
	}
	return &AnnotationsOutput{Body: added}, nil
}
