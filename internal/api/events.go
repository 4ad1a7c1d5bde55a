package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/joeblew999/plat-annotate/internal/events"
)

type EventsInput struct {
	Session string `query:"session" doc:"Only stream events of this session"`
}

// RegisterEvents registers the annotation event stream.
func (h *APIHandler) RegisterEvents(api huma.API) {
	sse.Register(api, huma.Operation{
		OperationID: "stream-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/events",
		Summary:     "Stream annotation events",
		Tags:        []string{"events"},
	}, map[string]any{
		"annotation": events.Event{},
	}, h.StreamEvents)
}

// StreamEvents forwards bus events until the client goes away.
func (h *APIHandler) StreamEvents(ctx context.Context, input *EventsInput, send sse.Sender) {
	if h.svc.Bus == nil {
		return
	}
	ch := h.svc.Bus.Subscribe()
	defer h.svc.Bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if input.Session != "" && e.Session != input.Session {
				continue
			}
			if err := send.Data(e); err != nil {
				return
			}
		}
	}
}
