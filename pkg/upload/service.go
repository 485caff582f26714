// Package upload orchestrates ingestion, discovery, registration and
// reconstruction of projects across upload sessions.
package upload

import (
	"encoding/json"
	"io"

	"projectcas/pkg/analysis"
	"projectcas/pkg/archive"
	"projectcas/pkg/discovery"
	"projectcas/pkg/log"
	"projectcas/pkg/manifest"
	"projectcas/pkg/materialize"
	"projectcas/pkg/merge"
	"projectcas/pkg/models"
	"projectcas/pkg/registry"
	"projectcas/pkg/store"
	"projectcas/pkg/store/objects"
)

// Options configures a Service.
type Options struct {
	StorageDir     string
	MergeRoot      string
	IgnorePatterns []string
}

// Result is the outcome of a first-time upload.
type Result struct {
	Manifest *manifest.Manifest `json:"manifest"`
	Projects []models.Project   `json:"projects"`
}

// IncrementalResult is the outcome of an upload matched against existing
// projects.
type IncrementalResult struct {
	Manifest  *manifest.Manifest       `json:"manifest"`
	Matched   map[string]int64         `json:"matched"`
	Unmatched []models.DetectedProject `json:"unmatched"`
}

// Service ties the storage engine to the project registry.
type Service struct {
	objects      *objects.Store
	manifests    *manifest.Repository
	builder      *manifest.Builder
	materializer *materialize.Materializer
	cache        *analysis.Cache
	merger       *merge.Merger
	projects     *registry.Store
	mergeRoot    string
	ignore       []string
}

// NewService creates a Service over the storage directory and registry.
func NewService(opts Options, projects *registry.Store) *Service {
	objectStore := objects.New(opts.StorageDir)
	manifests := manifest.NewRepository(opts.StorageDir)

	return &Service{
		objects:      objectStore,
		manifests:    manifests,
		builder:      manifest.NewBuilder(objectStore, manifests),
		materializer: materialize.New(manifests, objectStore),
		cache:        analysis.NewCache(opts.StorageDir),
		merger:       merge.NewMerger(),
		projects:     projects,
		mergeRoot:    opts.MergeRoot,
		ignore:       opts.IgnorePatterns,
	}
}

// Ingest stores the archive and returns its manifest without registering
// anything.
func (s *Service) Ingest(zipPath string, uploadID int64) (*manifest.Manifest, error) {
	return s.builder.Ingest(zipPath, uploadID)
}

// Manifest loads the manifest of an earlier upload.
func (s *Service) Manifest(uploadID int64) (*manifest.Manifest, error) {
	return s.manifests.Load(uploadID)
}

// Discover runs project discovery and tree building over an archive namelist.
func (s *Service) Discover(names []string) ([]models.DetectedProject, *discovery.Tree) {
	return discovery.DiscoverProjects(names, s.ignore), discovery.BuildTree(names, s.ignore)
}

func (s *Service) ingestAndDiscover(zipPath string, uploadID int64) (*manifest.Manifest, []models.DetectedProject, error) {
	m, err := s.builder.Ingest(zipPath, uploadID)
	if err != nil {
		return nil, nil, err
	}

	names, err := archive.Names(zipPath)
	if err != nil {
		return nil, nil, err
	}
	return m, discovery.DiscoverProjects(names, s.ignore), nil
}

// Upload ingests an archive and registers every detected project as new.
func (s *Service) Upload(zipPath string, uploadID int64) (*Result, error) {
	m, detected, err := s.ingestAndDiscover(zipPath, uploadID)
	if err != nil {
		return nil, err
	}

	result := &Result{Manifest: m, Projects: make([]models.Project, 0, len(detected))}
	for _, d := range detected {
		project, err := s.projects.CreateProject(d)
		if err != nil {
			return nil, err
		}
		if err := s.projects.AddUpload(project.ID, uploadID); err != nil {
			return nil, err
		}
		project.UploadIDs = []int64{uploadID}
		result.Projects = append(result.Projects, *project)
	}

	log.Info().Int64("upload_id", uploadID).Int("projects", len(result.Projects)).Msg("Upload registered")
	return result, nil
}

// FindMatchingProjects maps registry.NameKey names to existing project ids.
func (s *Service) FindMatchingProjects(names []string) (map[string]int64, error) {
	return s.projects.FindByNames(names)
}

// IncrementalUploadZip ingests an archive and attaches every detected project
// whose name appears in existing (keyed by lowercased name). Matched projects
// get the upload associated and their raw file count raised by the detected
// count; the rest are returned unmatched.
func (s *Service) IncrementalUploadZip(zipPath string, uploadID int64, existing map[string]int64) (*IncrementalResult, error) {
	m, detected, err := s.ingestAndDiscover(zipPath, uploadID)
	if err != nil {
		return nil, err
	}

	result := &IncrementalResult{Manifest: m, Matched: make(map[string]int64), Unmatched: []models.DetectedProject{}}
	for _, d := range detected {
		projectID, ok := existing[registry.NameKey(d.Name)]
		if !ok {
			result.Unmatched = append(result.Unmatched, d)
			continue
		}

		if err := s.projects.AddUpload(projectID, uploadID); err != nil {
			return nil, err
		}
		if err := s.projects.IncrementFileCount(projectID, d.FileCount); err != nil {
			return nil, err
		}
		result.Matched[d.Name] = projectID
	}

	log.Info().
		Int64("upload_id", uploadID).
		Int("matched", len(result.Matched)).
		Int("unmatched", len(result.Unmatched)).
		Msg("Incremental upload applied")
	return result, nil
}

// MaterializeProject reconstructs the project's merged tree under destRoot.
// Uploads are applied in ascending id order so the tree matches
// ProjectFingerprint regardless of association order.
func (s *Service) MaterializeProject(projectID int64, destRoot string) (string, error) {
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return "", err
	}
	return s.materializer.Materialize(project.RelPath, materialize.CanonicalOrder(project.UploadIDs), destRoot)
}

// ProjectFingerprint computes the project's current fingerprint and unique
// file count.
func (s *Service) ProjectFingerprint(projectID int64) (string, int, error) {
	project, err := s.projects.GetProject(projectID)
	if err != nil {
		return "", 0, err
	}

	uploadIDs := materialize.CanonicalOrder(project.UploadIDs)
	fingerprint, err := s.materializer.Fingerprint(project.RelPath, uploadIDs)
	if err != nil {
		return "", 0, err
	}
	count, err := s.materializer.FileCount(project.RelPath, uploadIDs)
	if err != nil {
		return "", 0, err
	}
	return fingerprint, count, nil
}

// CachedAnalysis returns the cached analysis and whether it is still valid
// for the project's current fingerprint.
func (s *Service) CachedAnalysis(projectID int64) (*analysis.Entry, bool, error) {
	fingerprint, _, err := s.ProjectFingerprint(projectID)
	if err != nil {
		return nil, false, err
	}

	entry, err := s.cache.Get(projectID)
	if err != nil {
		return nil, false, err
	}
	return entry, entry.Matches(fingerprint), nil
}

// StoreAnalysis caches payload against the project's current fingerprint.
func (s *Service) StoreAnalysis(projectID int64, payload json.RawMessage) (*analysis.Entry, error) {
	fingerprint, _, err := s.ProjectFingerprint(projectID)
	if err != nil {
		return nil, err
	}
	return s.cache.Put(projectID, fingerprint, payload)
}

// Merge flattens an archive into the configured merge root.
func (s *Service) Merge(zipPath, project string) (*merge.Result, error) {
	return s.merger.Merge(zipPath, s.mergeRoot, project)
}

// ListProjects lists every registered project.
func (s *Service) ListProjects() ([]models.Project, error) {
	return s.projects.ListProjects()
}

// OpenObject opens a stored object for reading.
func (s *Service) OpenObject(hash string) (io.ReadCloser, error) {
	return s.objects.Open(hash)
}

// ObjectInfo returns size and creation metadata for a stored object.
func (s *Service) ObjectInfo(hash string) (*store.ObjectInfo, error) {
	return s.objects.Stat(hash)
}
