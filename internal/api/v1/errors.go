package v1

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
)

// httpError maps a service error onto a problem response. Validation details
// are returned to the caller; backend failures are logged and summarised.
func httpError(err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(msg)
	case errors.Is(err, domain.ErrBackendUnavailable):
		log.Warn().Err(err).Msg(msg)
		return huma.Error503ServiceUnavailable(msg + ": backend unavailable")
	default:
		log.Error().Err(err).Msg(msg)
		return huma.Error500InternalServerError(msg)
	}
}

func taskNotFound() error {
	return huma.Error404NotFound("task not found")
}
