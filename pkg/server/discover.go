package server

import (
	"net/http"

	"projectcas/pkg/discovery"
	"projectcas/pkg/models"

	"github.com/labstack/echo/v4"
)

// DiscoverRequest is the body of POST /discover.
type DiscoverRequest struct {
	Names []string `json:"names"`
}

// DiscoverResponse lists detected projects and the filtered archive tree.
type DiscoverResponse struct {
	Projects []models.DetectedProject `json:"projects"`
	Tree     *discovery.Node          `json:"tree"`
}

func (srv *Server) discover(ctx echo.Context) error {
	var req DiscoverRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	projects, tree := srv.service.Discover(req.Names)
	if projects == nil {
		projects = []models.DetectedProject{}
	}
	response := DiscoverResponse{Projects: projects}
	if tree != nil {
		response.Tree = tree.Root
	}
	return ctx.JSON(http.StatusOK, response)
}
