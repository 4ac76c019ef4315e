package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

// DataSource hands fully read datasets to the analytics service.
// Version returns a string that changes whenever the dataset content may
// have changed; it tags cache entries.
type DataSource interface {
	List(ctx context.Context) ([]models.FileInfo, error)
	Version(ctx context.Context, name string) (string, error)
	Load(ctx context.Context, name string) (*state.Dataset, error)
	Close() error
}

// FileSource serves the CSV files of one directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a source for dir, which must exist.
func NewFileSource(dir string) (*FileSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory: %s is not a directory", dir)
	}
	return &FileSource{dir: dir}, nil
}

// Dir returns the directory being served.
func (s *FileSource) Dir() string { return s.dir }

func (s *FileSource) List(_ context.Context) ([]models.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	files := []models.FileInfo{}
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		files = append(files, models.FileInfo{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Version combines modification time and size.
func (s *FileSource) Version(_ context.Context, name string) (string, error) {
	info, err := s.stat(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

func (s *FileSource) Load(_ context.Context, name string) (*state.Dataset, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, notFoundOr(name, err)
	}
	defer f.Close()

	return state.ParseReader(name, bufio.NewReader(f))
}

func (s *FileSource) Close() error { return nil }

func (s *FileSource) stat(name string) (fs.FileInfo, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, notFoundOr(name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: file %q", analysis.ErrNotFound, name)
	}
	return info, nil
}

// path maps a file name to a path inside the directory. Names with
// separators or parent references never match a file.
func (s *FileSource) path(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) || filepath.Base(name) != name || !isCSV(name) {
		return "", fmt.Errorf("%w: file %q", analysis.ErrNotFound, name)
	}
	return filepath.Join(s.dir, name), nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func notFoundOr(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: file %q", analysis.ErrNotFound, name)
	}
	return fmt.Errorf("open %s: %w", name, err)
}
