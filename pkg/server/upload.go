package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"

	"github.com/labstack/echo/v4"
)

const (
	tempDirPerm     = 0o750
	modeIncremental = "incremental"
)

// ensureTempDir creates the server temp directory if it doesn't exist.
func (srv *Server) ensureTempDir() error {
	if err := os.MkdirAll(srv.tempDir, tempDirPerm); err != nil {
		log.Error().Err(err).Str("temp_dir", srv.tempDir).Msg("Failed to create server temp directory")
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	return nil
}

// receiveArchive copies the multipart "file" field into a temp .zip file.
// The returned cleanup removes it. A nil path with nil error means a response
// has already been written.
func (srv *Server) receiveArchive(ctx echo.Context) (string, func(), error) {
	if srv.maxUpload > 0 {
		req := ctx.Request()
		req.Body = http.MaxBytesReader(ctx.Response(), req.Body, srv.maxUpload)
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, ctx.JSON(http.StatusRequestEntityTooLarge, map[string]string{
				"error": "archive too large",
			})
		}
		log.Error().Err(err).Msg("File parameter is required")
		return "", nil, ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "file parameter is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return "", nil, ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open uploaded file",
		})
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close source file")
		}
	}()

	if err := srv.ensureTempDir(); err != nil {
		return "", nil, ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to store uploaded file",
		})
	}

	tempFile, err := os.CreateTemp(srv.tempDir, "upload-*.zip")
	if err != nil {
		log.Error().Err(err).Str("temp_dir", srv.tempDir).Msg("Failed to create temporary file")
		return "", nil, ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to store uploaded file",
		})
	}
	tempPath := tempFile.Name()

	cleanup := func() {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			log.Warn().Err(removeErr).Str("temp_file", tempPath).Msg("Failed to remove temp file")
		}
	}

	_, err = io.Copy(tempFile, src)
	if closeErr := tempFile.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Str("temp_file", tempPath).Msg("Failed to close temp file")
	}
	if err != nil {
		cleanup()
		log.Error().Err(err).Msg("Failed to save uploaded file to temp")
		return "", nil, ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to store uploaded file",
		})
	}

	log.Debug().Str("filename", file.Filename).Str("temp_file", tempPath).Int64("size", file.Size).Msg("Archive received")
	return tempPath, cleanup, nil
}

// uploadArchive handles POST /uploads/:id. With form field mode=incremental,
// detected projects are matched by name against registered ones.
func (srv *Server) uploadArchive(ctx echo.Context) error {
	uploadID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "upload id")
	}
	log.Info().Int64("upload_id", uploadID).Msg("Archive upload request received")

	zipPath, cleanup, err := srv.receiveArchive(ctx)
	if zipPath == "" {
		return err
	}
	defer cleanup()

	if ctx.FormValue("mode") != modeIncremental {
		result, err := srv.service.Upload(zipPath, uploadID)
		if err != nil {
			return respondError(ctx, err, "process upload")
		}
		return ctx.JSON(http.StatusOK, result)
	}

	names, err := archive.Names(zipPath)
	if err != nil {
		return respondError(ctx, err, "process upload")
	}
	detected, _ := srv.service.Discover(names)

	projectNames := make([]string, 0, len(detected))
	for _, d := range detected {
		projectNames = append(projectNames, d.Name)
	}
	existing, err := srv.service.FindMatchingProjects(projectNames)
	if err != nil {
		return respondError(ctx, err, "match projects")
	}

	result, err := srv.service.IncrementalUploadZip(zipPath, uploadID, existing)
	if err != nil {
		return respondError(ctx, err, "process upload")
	}
	return ctx.JSON(http.StatusOK, result)
}

// getManifest handles GET /uploads/:id/manifest.
func (srv *Server) getManifest(ctx echo.Context) error {
	uploadID, ok := idParam(ctx, "id")
	if !ok {
		return badID(ctx, "upload id")
	}

	m, err := srv.service.Manifest(uploadID)
	if err != nil {
		return respondError(ctx, err, "load manifest")
	}
	return ctx.JSON(http.StatusOK, m)
}

// mergeArchive handles POST /merge/:project.
func (srv *Server) mergeArchive(ctx echo.Context) error {
	project := ctx.Param("project")
	log.Info().Str("project", project).Msg("Merge request received")

	zipPath, cleanup, err := srv.receiveArchive(ctx)
	if zipPath == "" {
		return err
	}
	defer cleanup()

	result, err := srv.service.Merge(zipPath, project)
	if err != nil {
		return respondError(ctx, err, "merge archive")
	}
	return ctx.JSON(http.StatusOK, result)
}
