package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArchiveService exports session annotations as PMTiles archives.
type ArchiveService struct {
	tilesDir string
}

// NewArchiveService creates a new archive service.
func NewArchiveService(dataDir string) *ArchiveService {
	return &ArchiveService{
		tilesDir: filepath.Join(dataDir, "tiles"),
	}
}

// List returns all exported archives.
func (s *ArchiveService) List() ([]ArchiveFile, error) {
	entries, err := os.ReadDir(s.tilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchiveFile{}, nil
		}
		return nil, err
	}

	files := []ArchiveFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pmtiles" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ArchiveFile{
			Name: entry.Name(),
			Size: formatSize(info.Size()),
		})
	}
	return files, nil
}

// Export writes the archive of sess to <data>/tiles/<session id>.pmtiles,
// replacing an earlier export.
func (s *ArchiveService) Export(ctx context.Context, sess *Session, minZoom, maxZoom int) (ArchiveFile, error) {
	if err := os.MkdirAll(s.tilesDir, 0755); err != nil {
		return ArchiveFile{}, err
	}

	name := sess.ID + ".pmtiles"
	tmp, err := os.CreateTemp(s.tilesDir, name+".*")
	if err != nil {
		return ArchiveFile{}, err
	}
	defer os.Remove(tmp.Name())

	if err := sess.WriteArchive(ctx, tmp, minZoom, maxZoom); err != nil {
		tmp.Close()
		return ArchiveFile{}, fmt.Errorf("exporting session %s: %w", sess.ID, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return ArchiveFile{}, err
	}
	if err := tmp.Close(); err != nil {
		return ArchiveFile{}, err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.tilesDir, name)); err != nil {
		return ArchiveFile{}, err
	}
	return ArchiveFile{Name: name, Size: formatSize(info.Size())}, nil
}

// Path returns the file path of an exported archive, or false if it does
// not exist.
func (s *ArchiveService) Path(name string) (string, bool) {
	if name != filepath.Base(name) || filepath.Ext(name) != ".pmtiles" {
		return "", false
	}
	p := filepath.Join(s.tilesDir, name)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
