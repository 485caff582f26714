package server

import (
	"errors"
	"net/http"
	"strconv"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/manifest"
	"projectcas/pkg/merge"
	"projectcas/pkg/registry"
	"projectcas/pkg/store"

	"github.com/labstack/echo/v4"
)

// errorStatus maps engine errors to HTTP status codes: malformed input is the
// client's fault, missing records are 404, a reused upload id is 409 and
// everything else is a server error.
func errorStatus(err error) int {
	var (
		invalidHashErr store.InvalidHashError
		notFoundErr    store.ObjectNotFoundError
	)

	switch {
	case errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, merge.ErrInvalidProject),
		errors.Is(err, registry.ErrInvalidProjectName),
		errors.As(err, &invalidHashErr):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrProjectNotFound),
		errors.Is(err, manifest.ErrManifestNotFound),
		errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.Is(err, manifest.ErrManifestExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server errors are logged and
// their detail withheld.
func respondError(ctx echo.Context, err error, action string) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Request().URL.Path).Msg("Failed to " + action)
		return ctx.JSON(status, map[string]string{
			"error": "failed to " + action,
		})
	}

	log.Warn().Err(err).Str("path", ctx.Request().URL.Path).Int("status", status).Msg("Rejected request")
	return ctx.JSON(status, map[string]string{
		"error": err.Error(),
	})
}

// idParam parses a positive integer path parameter.
func idParam(ctx echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badID(ctx echo.Context, name string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{
		"error": "invalid " + name,
	})
}
