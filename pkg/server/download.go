package server

import (
	"net/http"

	"projectcas/pkg/log"

	"github.com/labstack/echo/v4"
)

// downloadObject handles GET /objects/:hash/download and streams the raw
// stored bytes.
func (srv *Server) downloadObject(ctx echo.Context) error {
	hash := ctx.Param("hash")
	log.Info().Str("hash", hash).Msg("Object download request")

	reader, err := srv.service.OpenObject(hash)
	if err != nil {
		return respondError(ctx, err, "download object")
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Str("hash", hash).Msg("Failed to close object")
		}
	}()

	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, reader)
}
