package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"projectcas/pkg/analysis"
	"projectcas/pkg/discovery"
	"projectcas/pkg/log"
	"projectcas/pkg/manifest"
	"projectcas/pkg/merge"
	"projectcas/pkg/models"
	"projectcas/pkg/store"
	"projectcas/pkg/upload"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	shutdownTimeout = 10
	syncTimeout     = 30
)

// Service is the engine surface exposed over HTTP.
type Service interface {
	Upload(zipPath string, uploadID int64) (*upload.Result, error)
	IncrementalUploadZip(zipPath string, uploadID int64, existing map[string]int64) (*upload.IncrementalResult, error)
	FindMatchingProjects(names []string) (map[string]int64, error)
	Manifest(uploadID int64) (*manifest.Manifest, error)
	Discover(names []string) ([]models.DetectedProject, *discovery.Tree)
	ListProjects() ([]models.Project, error)
	MaterializeProject(projectID int64, destRoot string) (string, error)
	ProjectFingerprint(projectID int64) (string, int, error)
	CachedAnalysis(projectID int64) (*analysis.Entry, bool, error)
	StoreAnalysis(projectID int64, payload json.RawMessage) (*analysis.Entry, error)
	Merge(zipPath, project string) (*merge.Result, error)
	OpenObject(hash string) (io.ReadCloser, error)
	ObjectInfo(hash string) (*store.ObjectInfo, error)
}

var _ Service = (*upload.Service)(nil)

// Options configures a Server.
type Options struct {
	StorageDir     string
	TempDir        string // Directory for uploaded archives while they are processed
	ScratchDir     string // Parent of materialized project trees
	MaxUploadBytes int64
	Version        string
}

// Server is the HTTP adapter in front of the storage engine.
type Server struct {
	storageDir string
	tempDir    string
	scratchDir string
	maxUpload  int64
	version    string
	startedAt  time.Time
	echo       *echo.Echo
	service    Service
}

// NewServer creates a Server. Empty directories default to subdirectories of
// StorageDir.
func NewServer(opts Options, service Service) *Server {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(opts.StorageDir, "temp")
	}
	scratchDir := opts.ScratchDir
	if scratchDir == "" {
		scratchDir = filepath.Join(opts.StorageDir, "scratch")
	}

	return &Server{
		storageDir: opts.StorageDir,
		tempDir:    tempDir,
		scratchDir: scratchDir,
		maxUpload:  opts.MaxUploadBytes,
		version:    opts.Version,
		startedAt:  time.Now(),
		echo:       echo.New(),
		service:    service,
	}
}

// Start serves on addr until SIGINT or SIGTERM, then shuts down gracefully.
func (srv *Server) Start(addr string) error {
	srv.setupRoutes()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("storage_dir", srv.storageDir).
			Str("version", srv.version).
			Msg("Starting projectcas server")

		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return srv.Shutdown()
}

// Shutdown stops the HTTP server and flushes filesystem buffers.
func (srv *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout*time.Second)
	defer cancel()

	if err := srv.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")

	// Objects and manifests are renamed into place; sync makes the renames durable.
	syncCtx, syncCancel := context.WithTimeout(context.Background(), syncTimeout*time.Second)
	defer syncCancel()

	cmd := exec.CommandContext(syncCtx, "sync")
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Msg("Sync command failed")
	} else {
		log.Info().Msg("Filesystem buffers flushed successfully")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

func (srv *Server) setupRoutes() {
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${status} ${method} ${uri} (${latency_human})\n",
	}))

	// No global gzip: object downloads must return the exact stored bytes.

	srv.echo.Use(middleware.Recover())

	srv.echo.GET("/swagger.yml", srv.serveSwaggerSpec)
	srv.echo.GET("/status", srv.getStatus)

	srv.echo.POST("/uploads/:id", srv.uploadArchive)
	srv.echo.GET("/uploads/:id/manifest", srv.getManifest)
	srv.echo.POST("/discover", srv.discover)
	srv.echo.POST("/merge/:project", srv.mergeArchive)

	srv.echo.GET("/projects", srv.listProjects)
	srv.echo.GET("/projects/:id/fingerprint", srv.getFingerprint)
	srv.echo.POST("/projects/:id/materialize", srv.materializeProject)
	srv.echo.GET("/projects/:id/analysis", srv.getAnalysis)
	srv.echo.PUT("/projects/:id/analysis", srv.putAnalysis)

	srv.echo.GET("/objects/:hash/download", srv.downloadObject)
	srv.echo.GET("/objects/:hash/info", srv.getObjectInfo)
}
