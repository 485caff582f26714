package server

import (
	"net/http"
	"time"

	"projectcas/pkg/log"

	"github.com/labstack/echo/v4"
)

func (srv *Server) getObjectInfo(ctx echo.Context) error {
	hash := ctx.Param("hash")
	log.Info().Str("hash", hash).Msg("Object info request")

	info, err := srv.service.ObjectInfo(hash)
	if err != nil {
		return respondError(ctx, err, "get object info")
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"hash":       info.Hash,
		"size":       info.Size,
		"created_at": info.CreatedAt.Format(time.RFC3339),
	})
}
