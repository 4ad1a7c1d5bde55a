// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions *service.SessionService
	Archives *service.ArchiveService
	Sources  *service.SourceService
	Bus      *events.Bus
	DB       *sql.DB
	DataDir  string
}

// Types

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID" example:"01J9Z3K8Q4V6W2X7Y5T1R0N3M8"`
}

type AnnotationIDInput struct {
	SessionIDInput
	AID int64 `path:"aid" doc:"Annotation ID" example:"0"`
}

type SessionOutput struct {
	Body service.SessionInfo
}

type SessionsOutput struct {
	Body Page[service.SessionInfo]
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every handler of the API.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterSessions registers session CRUD routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.GetSessions, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetSessions(ctx context.Context, input *PageInput) (*SessionsOutput, error) {
	page := paginate(h.svc.Sessions.List(), *input)
	out := &SessionsOutput{Body: Page[service.SessionInfo]{
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
		Data:   make([]service.SessionInfo, 0, len(page.Data)),
	}}
	for _, sess := range page.Data {
		info, err := sess.Info(ctx)
		if err != nil {
			return nil, problem(err)
		}
		out.Body.Data = append(out.Body.Data, info)
	}
	return out, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{ Body service.SessionConfig }) (*SessionOutput, error) {
	sess, err := h.svc.Sessions.Create(input.Body)
	if err != nil {
		return nil, problem(err)
	}
	info, err := sess.Info(ctx)
	if err != nil {
		return nil, problem(err)
	}
	return &SessionOutput{Body: info}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	info, err := sess.Info(ctx)
	if err != nil {
		return nil, problem(err)
	}
	return &SessionOutput{Body: info}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Sessions.Delete(ctx, input.ID); err != nil {
		return nil, problem(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session deleted"}}, nil
}

func (h *APIHandler) session(id string) (*service.Session, error) {
	sess, err := h.svc.Sessions.Get(id)
	if err != nil {
		return nil, problem(err)
	}
	return sess, nil
}
