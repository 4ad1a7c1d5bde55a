package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Sessions int      `json:"sessions" doc:"Number of open map sessions"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-annotate",
		Version:  "0.1.0",
		DataDir:  h.svc.DataDir,
		DB:       h.svc.DB != nil,
		Sessions: len(h.svc.Sessions.List()),
		Features: []string{"annotations", "drag", "mvt", "pmtiles", "duckdb", "sse"},
	}}, nil
}
