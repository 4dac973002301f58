// Package cas implements the build info store.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// latestPrefix namespaces the per-recipe copies of the latest record.
const latestPrefix = "recipe:"

// Store implements ports.BuildInfoStore with one JSON file per key under
// <root>/.kiln/store. Each record is written under its instance ID and under
// its recipe name.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Get retrieves the build info for a given instance ID.
func (s *Store) Get(root, instanceID string) (*domain.BuildInfo, error) {
	return s.read(s.filename(root, instanceID))
}

// Latest returns the most recently stored record of the named recipe.
func (s *Store) Latest(root, recipe string) (*domain.BuildInfo, error) {
	return s.read(s.filename(root, latestPrefix+recipe))
}

// Put stores the build info.
func (s *Store) Put(root string, info domain.BuildInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	dir := filepath.Join(root, domain.DefaultStorePath())
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	for _, key := range []string{info.InstanceID, latestPrefix + info.Recipe} {
		if err := writeAtomic(s.filename(root, key), data); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "key", key)
		}
	}
	return nil
}

func (s *Store) read(filename string) (*domain.BuildInfo, error) {
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var info domain.BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error())
	}
	return &info, nil
}

func (s *Store) filename(root, key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(root, domain.DefaultStorePath(), hex.EncodeToString(hash[:])+".json")
}

// writeAtomic writes data to a temporary file and renames it over filename,
// so readers never observe a partial record.
func writeAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(domain.FilePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
