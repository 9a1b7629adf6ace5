// Package cache persists upstream documents on disk so the database can be
// rebuilt at any time without refetching. Each race result lives in its own
// zip archive holding a single session.json entry; reference documents
// (tracks, cars, car classes, seasons) are plain JSON files.
package cache

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

var ErrNotFound = errors.New("document not in cache")

const (
	sessionsDir  = "sessions"
	archiveEntry = "session.json"
)

// Store is a directory-backed document cache rooted at one base directory.
type Store struct {
	dir string
}

// NewStore opens (creating if necessary) a cache under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the archive location for a subsession, whether it exists or
// not.
func (s *Store) Path(subsessionID int64) string {
	return filepath.Join(s.dir, sessionsDir,
		fmt.Sprintf("%d.session.zip", subsessionID))
}

func (s *Store) Has(subsessionID int64) bool {
	_, err := os.Stat(s.Path(subsessionID))
	return err == nil
}

// Write stores one race result document. An existing archive is replaced
// atomically via a temp file so a crash never leaves a truncated entry.
func (s *Store) Write(subsessionID int64, data []byte) error {
	target := s.Path(subsessionID)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeArchive(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func writeArchive(w io.Writer, data []byte) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	entry, err := zw.Create(archiveEntry)
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// Read returns the raw race result document for a subsession.
func (s *Store) Read(subsessionID int64) ([]byte, error) {
	zr, err := zip.OpenReader(s.Path(subsessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	f, err := zr.Open(archiveEntry)
	if err != nil {
		return nil, fmt.Errorf("open archive entry: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read archive entry: %w", err)
	}
	return data, nil
}

// IDs lists all cached subsession ids in ascending order. Files not matching
// the archive naming scheme are skipped.
func (s *Store) IDs() ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sessionsDir))
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".session.zip")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Reference document kinds.
const (
	RefTracks     = "tracks"
	RefCars       = "cars"
	RefCarClasses = "car-classes"
	RefSeasons    = "seasons"
)

func (s *Store) refPath(kind string) string {
	return filepath.Join(s.dir, kind+".json")
}

// WriteReference stores one reference document (plain JSON, no archive).
func (s *Store) WriteReference(kind string, data []byte) error {
	if err := os.WriteFile(s.refPath(kind), data, 0o644); err != nil {
		return fmt.Errorf("write %s reference: %w", kind, err)
	}
	return nil
}

// ReadReference returns one reference document.
func (s *Store) ReadReference(kind string) ([]byte, error) {
	data, err := os.ReadFile(s.refPath(kind))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s reference: %w", kind, err)
	}
	return data, nil
}
