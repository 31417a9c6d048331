package bier

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/bcgov/geobc-bier/internal/utils"
)

// LocalStore implements ObjectStore on a local directory, mirroring bucket
// keys as relative file paths. Lets a feed run end to end without credentials
// for the provincial object store; the content type and ACL arguments are
// accepted and ignored.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local store directory: %w", ErrMissingConfig)
	}
	if err := utils.CreateDirectoryIfNotExists(baseDir); err != nil {
		return nil, err
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) Upload(key string, body []byte, contentType string, public bool) error {
	path, err := s.prepare(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("writing local object %s: %w", key, err)
	}
	logrus.Debugf("Wrote %s", path)
	return nil
}

// UploadJSON pretty-prints, unlike the bucket store, so local snapshots stay
// readable during development.
func (s *LocalStore) UploadJSON(key string, v interface{}, public bool) error {
	path, err := s.prepare(key)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing local object %s: %w", key, err)
	}
	defer file.Close()

	if err := utils.WriteJSONFile(file, v, true); err != nil {
		return fmt.Errorf("writing local object %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) UploadCSV(key string, records interface{}, public bool) error {
	path, err := s.prepare(key)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing local object %s: %w", key, err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(records, file); err != nil {
		return fmt.Errorf("marshaling csv for %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Download(key string) ([]byte, error) {
	path := s.path(key)
	if !utils.LocalFileExists(path) {
		return nil, fmt.Errorf("local object %s: %w", key, os.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading local object %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) DownloadJSON(key string, v interface{}) error {
	path := s.path(key)
	if !utils.LocalFileExists(path) {
		return fmt.Errorf("local object %s: %w", key, os.ErrNotExist)
	}
	return utils.ReadJSONFile(path, v)
}

// List walks the base directory and returns the slash-separated keys under
// prefix, sorted.
func (s *LocalStore) List(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing local objects under %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *LocalStore) prepare(key string) (string, error) {
	path := s.path(key)
	if err := utils.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", key, err)
	}
	return path, nil
}
