// Package blob stores large binaries (video modules, webinar recordings) as
// plain files, outside the tightly-quota'd collection store.
package blob

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type fsStore struct {
	dir string
}

var _ core.BlobStore = (*fsStore)(nil)

func NewFSStore(dir string) (core.BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating blob dir")
	}
	return &fsStore{dir: dir}, nil
}

func (s *fsStore) path(id string) string {
	// ids are uuids; Base guards against path traversal regardless
	return filepath.Join(s.dir, filepath.Base(id))
}

func (s *fsStore) SaveBlob(id string, r io.Reader) error {
	f, err := os.Create(s.path(id))
	if err != nil {
		return errors.Wrap(err, "creating blob file")
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return errors.Wrap(err, "writing blob")
}

func (s *fsStore) OpenBlob(id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	return f, errors.Wrap(err, "opening blob")
}

func (s *fsStore) DeleteBlob(id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "deleting blob")
}
