package api

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
)

type StyleOutput struct {
	Body json.RawMessage
}

type ReloadStyleInput struct {
	SessionIDInput
	Body struct {
		Name string `json:"name,omitempty" doc:"Style to switch to; empty reloads the current style" example:"night"`
	}
}

// RegisterStyle registers style routes.
func (h *APIHandler) RegisterStyle(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/style", h.GetStyle, huma.OperationTags("style"))
	huma.Post(api, "/api/v1/sessions/{id}/style/reload", h.ReloadStyle, huma.OperationTags("style"))
}

// GetStyle returns the session's style document with its annotation
// sources and layers.
func (h *APIHandler) GetStyle(ctx context.Context, input *SessionIDInput) (*StyleOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	doc, err := sess.Style(ctx)
	if err != nil {
		return nil, problem(err)
	}
	return &StyleOutput{Body: doc}, nil
}

func (h *APIHandler) ReloadStyle(ctx context.Context, input *ReloadStyleInput) (*StyleOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.ReloadStyle(ctx, input.Body.Name); err != nil {
		return nil, problem(err)
	}
	doc, err := sess.Style(ctx)
	if err != nil {
		return nil, problem(err)
	}
	return &StyleOutput{Body: doc}, nil
}
