package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"projectcas/pkg/log"
	"projectcas/pkg/models"

	"github.com/labstack/echo/v4"
)

const maxAnalysisBytes = 16 << 20

func (srv *Server) listProjects(ctx echo.Context) error {
	projects, err := srv.service.ListProjects()
	if err != nil {
		return respondError(ctx, err, "list projects")
	}
	return ctx.JSON(http.StatusOK, models.ProjectListResponse{Projects: projects})
}

// getFingerprint handles GET /projects/:id/fingerprint.
func (srv *Server) getFingerprint(ctx echo.Context) error {
	projectID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "project id")
	}

	fingerprint, fileCount, err := srv.service.ProjectFingerprint(projectID)
	if err != nil {
		return respondError(ctx, err, "compute fingerprint")
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"project_id":  projectID,
		"fingerprint": fingerprint,
		"file_count":  fileCount,
	})
}

// materializeProject handles POST /projects/:id/materialize. Each call gets a
// fresh directory under the scratch dir.
func (srv *Server) materializeProject(ctx echo.Context) error {
	projectID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "project id")
	}

	if err := os.MkdirAll(srv.scratchDir, tempDirPerm); err != nil {
		log.Error().Err(err).Str("scratch_dir", srv.scratchDir).Msg("Failed to create scratch directory")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to materialize project",
		})
	}
	destRoot, err := os.MkdirTemp(srv.scratchDir, fmt.Sprintf("project-%d-*", projectID))
	if err != nil {
		log.Error().Err(err).Str("scratch_dir", srv.scratchDir).Msg("Failed to create materialization directory")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to materialize project",
		})
	}

	projectDir, err := srv.service.MaterializeProject(projectID, destRoot)
	if err != nil {
		if removeErr := os.RemoveAll(destRoot); removeErr != nil {
			log.Warn().Err(removeErr).Str("dest", destRoot).Msg("Failed to remove partial materialization")
		}
		return respondError(ctx, err, "materialize project")
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"path":       projectDir,
	})
}

// getAnalysis handles GET /projects/:id/analysis.
func (srv *Server) getAnalysis(ctx echo.Context) error {
	projectID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "project id")
	}

	entry, fresh, err := srv.service.CachedAnalysis(projectID)
	if err != nil {
		return respondError(ctx, err, "load analysis")
	}
	if entry == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "no cached analysis",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"entry": entry,
		"fresh": fresh,
	})
}

// putAnalysis handles PUT /projects/:id/analysis; the body is stored verbatim
// as the payload.
func (srv *Server) putAnalysis(ctx echo.Context) error {
	projectID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "project id")
	}

	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxAnalysisBytes))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
	}
	if !json.Valid(body) {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "payload must be valid JSON",
		})
	}

	entry, err := srv.service.StoreAnalysis(projectID, json.RawMessage(body))
	if err != nil {
		return respondError(ctx, err, "store analysis")
	}
	return ctx.JSON(http.StatusOK, entry)
}
