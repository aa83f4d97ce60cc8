package services

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/getship/shipd/internal/utils"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/archive"
	"github.com/getship/shipd/pkg/infrastructure/store"
)

// BackupService triggers database dumps and optional remote archival. The
// uploader is nil when archival credentials are not configured; archival then
// reports "not configured" instead of attempting and failing.
type BackupService struct {
	store    *store.DeploymentStore
	stacks   StackManager
	images   ImageClient
	uploader *archive.Uploader
	dataDir  string
}

func NewBackupService(
	deployments *store.DeploymentStore,
	stacks StackManager,
	images ImageClient,
	uploader *archive.Uploader,
	dataDir string,
) *BackupService {
	return &BackupService{
		store:    deployments,
		stacks:   stacks,
		images:   images,
		uploader: uploader,
		dataDir:  dataDir,
	}
}

type BackupResult struct {
	File string `json:"file"`
	Size int64  `json:"size"`
}

// ArchiveResult is a structured outcome: Configured false means archival was
// skipped because no credentials are set, which is not an error.
type ArchiveResult struct {
	Configured bool   `json:"configured"`
	RemotePath string `json:"remote_path,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// timestamp for dump file names: ISO-like with filesystem-unsafe characters
// stripped.
func backupTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05Z"), ":", "-")
}

// Backup dumps an instance's database into its backup directory. Dump
// failures surface the underlying error verbatim.
func (s *BackupService) Backup(ctx context.Context, name string) (*BackupResult, error) {
	if _, err := s.store.GetInstance(name); err != nil {
		return nil, err
	}
	dir := utils.BackupDir(s.dataDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	file := path.Join(dir, fmt.Sprintf("%s-%s.sql", name, backupTimestamp(time.Now())))
	size, err := s.stacks.DumpDatabase(ctx, name, file)
	if err != nil {
		return nil, err
	}
	return &BackupResult{File: file, Size: size}, nil
}

// ListBackups lists an instance's dump files, newest first.
func (s *BackupService) ListBackups(name string) ([]entities.BackupRecord, error) {
	if _, err := s.store.GetInstance(name); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(utils.BackupDir(s.dataDir, name))
	if os.IsNotExist(err) {
		return []entities.BackupRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backup dir: %w", err)
	}
	records := make([]entities.BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, entities.BackupRecord{
			File:    entry.Name(),
			Size:    fi.Size(),
			Created: fi.ModTime().UTC(),
		})
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// ArchiveBackup uploads one of an instance's dump files to the archive host.
func (s *BackupService) ArchiveBackup(ctx context.Context, name, file string) (*ArchiveResult, error) {
	if s.uploader == nil {
		return &ArchiveResult{Configured: false, Detail: "remote archival is not configured"}, nil
	}
	if _, err := s.store.GetInstance(name); err != nil {
		return nil, err
	}
	if file == "" || file != path.Base(file) {
		return nil, entities.NewValidationError("invalid backup file name %q", file)
	}
	local := path.Join(utils.BackupDir(s.dataDir, name), file)
	if _, err := os.Stat(local); err != nil {
		return nil, entities.NewNotFoundError("backup file %q not found", file)
	}
	remote, size, err := s.uploader.UploadFile(local)
	if err != nil {
		return nil, err
	}
	return &ArchiveResult{Configured: true, RemotePath: remote, Size: size}, nil
}

// ArchiveImage exports a built image tag as a tar stream and uploads it.
func (s *BackupService) ArchiveImage(ctx context.Context, tag string) (*ArchiveResult, error) {
	if s.uploader == nil {
		return &ArchiveResult{Configured: false, Detail: "remote archival is not configured"}, nil
	}
	if tag == "" {
		return nil, entities.NewValidationError("tag is required")
	}
	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	rc, err := s.images.Export(ctx, cfg.Defaults.Image+":"+tag)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	remoteName := fmt.Sprintf("%s-%s.tar", path.Base(cfg.Defaults.Image), tag)
	remote, size, err := s.uploader.Upload(rc, remoteName)
	if err != nil {
		return nil, err
	}
	return &ArchiveResult{Configured: true, RemotePath: remote, Size: size}, nil
}
