package api

import (
	"context"
	"errors"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/annotation"
	"github.com/joeblew999/plat-annotate/internal/scheduler"
	"github.com/joeblew999/plat-annotate/internal/service"
	"github.com/joeblew999/plat-annotate/internal/tiler"
)

// problem maps domain errors to HTTP errors.
func problem(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, annotation.ErrNotTracked),
		errors.Is(err, tiler.ErrNoTiles),
		errors.Is(err, os.ErrNotExist):
		return huma.Error404NotFound(err.Error())

	case errors.Is(err, annotation.ErrKeyLocked),
		errors.Is(err, annotation.ErrAlreadyOwned),
		errors.Is(err, annotation.ErrDestroyed):
		return huma.Error409Conflict(err.Error())

	case errors.Is(err, annotation.ErrInvalidGeometry),
		errors.Is(err, annotation.ErrInvalidProperty),
		errors.Is(err, annotation.ErrUnknownProperty),
		errors.Is(err, annotation.ErrKeyMismatch),
		errors.Is(err, annotation.ErrUnknownKind):
		return huma.Error422UnprocessableEntity(err.Error())

	case errors.Is(err, scheduler.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(err.Error())
	}

	logrus.WithError(err).Error("Request failed")
	return huma.Error500InternalServerError("internal error", err)
}
