package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"projectcas/pkg/models"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func renderProjects(out io.Writer, projects []models.Project) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Name", "Path", "Git", "Files", "Uploads"})
	for _, p := range projects {
		t.AppendRow(table.Row{p.ID, p.Name, displayPath(p.RelPath), p.HasGitRepo, p.FileCount, joinIDs(p.UploadIDs)})
	}
	t.Render()
}

func renderDetected(out io.Writer, detected []models.DetectedProject) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Name", "Path", "Git", "Files"})
	for _, d := range detected {
		t.AppendRow(table.Row{d.Name, displayPath(d.RelPath), d.HasGitRepo, d.FileCount})
	}
	t.Render()
}

// displayPath shows the archive root as "/".
func displayPath(relPath string) string {
	if relPath == "" {
		return "/"
	}
	return relPath
}

func joinIDs(ids []int64) string {
	buf := make([]byte, 0, len(ids)*4)
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, id, 10)
	}
	return string(buf)
}
