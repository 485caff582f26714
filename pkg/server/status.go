package server

import (
	"net/http"
	"strconv"
	"syscall"
	"time"

	"projectcas/pkg/log"

	"github.com/labstack/echo/v4"
)

// StatusInfo reports server health and storage usage.
type StatusInfo struct {
	Version       string      `json:"version"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Projects      int         `json:"projects"`
	Storage       StorageInfo `json:"storage"`
}

// StorageInfo represents disk usage information for the storage directory.
type StorageInfo struct {
	Total     uint64 `json:"total"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
}

// getStatus handles GET /status.
func (srv *Server) getStatus(ctx echo.Context) error {
	projects, err := srv.service.ListProjects()
	if err != nil {
		return respondError(ctx, err, "collect status")
	}

	storage, err := getStorageInfo(srv.storageDir)
	if err != nil {
		log.Error().Err(err).Str("storage_dir", srv.storageDir).Msg("Failed to collect storage information")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to collect status",
		})
	}

	uptime := int64(time.Since(srv.startedAt).Seconds())
	return ctx.JSON(http.StatusOK, StatusInfo{
		Version:       srv.version,
		Uptime:        formatUptime(uptime),
		UptimeSeconds: uptime,
		Projects:      len(projects),
		Storage:       *storage,
	})
}

// getStorageInfo gets disk usage information for the specified directory.
func getStorageInfo(path string) (*StorageInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, err
	}

	blockSize := uint64(stat.Bsize) // #nosec G115 - syscall values are system dependent

	total := stat.Blocks * blockSize
	available := stat.Bavail * blockSize

	return &StorageInfo{
		Total:     total,
		Used:      total - available,
		Available: available,
	}, nil
}

// formatUptime converts seconds to human-readable format.
func formatUptime(seconds int64) string {
	duration := time.Duration(seconds) * time.Second
	const hoursInDay = 24
	const minutesInHour = 60
	days := int(duration.Hours()) / hoursInDay
	hours := int(duration.Hours()) % hoursInDay
	minutes := int(duration.Minutes()) % minutesInHour

	switch {
	case days > 0:
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	case hours > 0:
		return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	default:
		return strconv.Itoa(minutes) + "m"
	}
}
