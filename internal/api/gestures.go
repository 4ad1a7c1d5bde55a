package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-annotate/internal/projection"
	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/service"
)

type ClickInput struct {
	SessionIDInput
	Body struct {
		X    float64 `json:"x" doc:"Screen x in pixels" example:"400"`
		Y    float64 `json:"y" doc:"Screen y in pixels" example:"300"`
		Long bool    `json:"long,omitempty" doc:"Deliver as a long click"`
	}
}

type ClickBody struct {
	Hit *scene.Annotation `json:"hit,omitempty" doc:"Topmost annotation under the point, if any"`
}

type DragInput struct {
	SessionIDInput
	Body service.DragRequest
}

type CameraInput struct {
	SessionIDInput
	Body scene.Viewport
}

// RegisterGestures registers routes that replay pointer gestures on a session.
func (h *APIHandler) RegisterGestures(api huma.API) {
	huma.Post(api, "/api/v1/sessions/{id}/click", h.Click, huma.OperationTags("gestures"))
	huma.Post(api, "/api/v1/sessions/{id}/drag", h.Drag, huma.OperationTags("gestures"))
	huma.Put(api, "/api/v1/sessions/{id}/camera", h.SetCamera, huma.OperationTags("gestures"))
}

func (h *APIHandler) Click(ctx context.Context, input *ClickInput) (*struct{ Body ClickBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	pt := projection.ScreenPoint{X: input.Body.X, Y: input.Body.Y}
	hit, err := sess.Click(ctx, pt, input.Body.Long)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body ClickBody }{Body: ClickBody{Hit: hit}}, nil
}

func (h *APIHandler) Drag(ctx context.Context, input *DragInput) (*struct{ Body service.DragResult }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Drag(ctx, input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body service.DragResult }{Body: res}, nil
}

func (h *APIHandler) SetCamera(ctx context.Context, input *CameraInput) (*struct{ Body projection.Viewport }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := sess.SetCamera(ctx, input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body projection.Viewport }{Body: v}, nil
}
