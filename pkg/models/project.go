package models

import "time"

// DetectedProject is a logical project found inside an uploaded archive.
type DetectedProject struct {
	Name       string `json:"name"`
	RelPath    string `json:"rel_path"`
	HasGitRepo bool   `json:"has_git_repo"`
	FileCount  int    `json:"file_count"`
}

// Project is a registered project and its accumulated upload contributions.
type Project struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	RelPath    string    `json:"rel_path"`
	HasGitRepo bool      `json:"has_git_repo"`
	FileCount  int64     `json:"file_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Computed fields (not stored in database).
	UploadIDs []int64 `json:"upload_ids,omitempty"`
}

// ProjectListResponse represents a list of projects.
type ProjectListResponse struct {
	Projects []Project `json:"projects"`
}
