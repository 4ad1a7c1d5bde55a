package api

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-annotate/internal/scene"
	"github.com/joeblew999/plat-annotate/internal/service"
)

type AnnotationOutput struct {
	Body scene.Annotation
}

type AnnotationsOutput struct {
	Body []scene.Annotation
}

type CreateAnnotationsInput struct {
	SessionIDInput
	Body struct {
		Annotations []scene.Annotation `json:"annotations" minItems:"1" doc:"Annotations to add; all are validated before any is added"`
	}
}

type UpdateAnnotationInput struct {
	AnnotationIDInput
	Body service.AnnotationPatch
}

// RegisterAnnotations registers annotation CRUD routes.
func (h *APIHandler) RegisterAnnotations(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/annotations", h.GetAnnotations, huma.OperationTags("annotations"))
	huma.Post(api, "/api/v1/sessions/{id}/annotations", h.CreateAnnotations, huma.OperationTags("annotations"))
	huma.Delete(api, "/api/v1/sessions/{id}/annotations", h.ClearAnnotations, huma.OperationTags("annotations"))
	huma.Get(api, "/api/v1/sessions/{id}/annotations/{aid}", h.GetAnnotation, huma.OperationTags("annotations"))
	huma.Patch(api, "/api/v1/sessions/{id}/annotations/{aid}", h.UpdateAnnotation, huma.OperationTags("annotations"))
	huma.Delete(api, "/api/v1/sessions/{id}/annotations/{aid}", h.DeleteAnnotation, huma.OperationTags("annotations"))
	huma.Get(api, "/api/v1/sessions/{id}/geojson", h.GetGeoJSON, huma.OperationTags("annotations"))
}

func (h *APIHandler) GetAnnotations(ctx context.Context, input *SessionIDInput) (*AnnotationsOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	all, err := sess.Annotations(ctx)
	if err != nil {
		return nil, problem(err)
	}
	return &AnnotationsOutput{Body: all}, nil
}

func (h *APIHandler) CreateAnnotations(ctx context.Context, input *CreateAnnotationsInput) (*AnnotationsOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	added, err := sess.AddAnnotations(ctx, input.Body.Annotations)
	if err != nil {
		return nil, problem(err)
	}
	return &AnnotationsOutput{Body: added}, nil
}

func (h *APIHandler) ClearAnnotations(ctx context.Context, input *SessionIDInput) (*struct{ Body MessageBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Clear(ctx); err != nil {
		return nil, problem(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Annotations cleared"}}, nil
}

func (h *APIHandler) GetAnnotation(ctx context.Context, input *AnnotationIDInput) (*AnnotationOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	a, err := sess.Annotation(ctx, input.AID)
	if err != nil {
		return nil, problem(err)
	}
	return &AnnotationOutput{Body: a}, nil
}

func (h *APIHandler) UpdateAnnotation(ctx context.Context, input *UpdateAnnotationInput) (*AnnotationOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	a, err := sess.UpdateAnnotation(ctx, input.AID, input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &AnnotationOutput{Body: a}, nil
}

func (h *APIHandler) DeleteAnnotation(ctx context.Context, input *AnnotationIDInput) (*struct{ Body MessageBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.DeleteAnnotation(ctx, input.AID); err != nil {
		return nil, problem(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Annotation deleted"}}, nil
}

func (h *APIHandler) GetGeoJSON(ctx context.Context, input *SessionIDInput) (*struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	fc, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, problem(err)
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, problem(err)
	}
	return &struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}{ContentType: "application/geo+json", Body: data}, nil
}
