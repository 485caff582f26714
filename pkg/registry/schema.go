package registry

// Schema contains the SQL statements to create the registry database schema.
const Schema = `
-- Projects table: one row per logical project across all uploads
CREATE TABLE IF NOT EXISTS projects (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    name_key     TEXT NOT NULL, -- Unicode-lowercased name, folded in Go
    rel_path     TEXT NOT NULL DEFAULT '',
    has_git_repo BOOLEAN DEFAULT FALSE,
    file_count   INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Project uploads: which upload sessions contributed to a project
CREATE TABLE IF NOT EXISTS project_uploads (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL,
    upload_id  INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
    UNIQUE (project_id, upload_id)
);

CREATE INDEX IF NOT EXISTS idx_projects_name_key ON projects(name_key);
CREATE INDEX IF NOT EXISTS idx_project_uploads_project ON project_uploads(project_id);
CREATE INDEX IF NOT EXISTS idx_project_uploads_upload ON project_uploads(upload_id);
`
