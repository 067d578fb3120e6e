package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidFilename = errors.New("invalid filename")

// UploadStore keeps uploaded documents in one directory.
type UploadStore struct {
	Dir string // absolute path of the upload directory
}

func NewUploadStore(dir string) (*UploadStore, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", dir, err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &UploadStore{Dir: absPath}, nil
}

// Path resolves filename inside the upload directory, rejecting names that
// would escape it or that cannot be ingested.
func (u *UploadStore) Path(filename string) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) || base == "" || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if !SupportedExtension(base) {
		return "", fmt.Errorf("%w: unsupported file type %q", ErrInvalidFilename, filepath.Ext(base))
	}
	cleanPath := filepath.Join(u.Dir, base)
	if !strings.HasPrefix(cleanPath, u.Dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the upload directory", ErrInvalidFilename, filename)
	}
	return cleanPath, nil
}

// Upload is a file just placed in the upload directory. The file it
// replaced, if any, is kept aside until Commit or Rollback.
type Upload struct {
	Path   string
	backup string
}

// Save writes r to the upload directory under filename and returns the
// pending upload. The caller must Commit or Rollback it.
func (u *UploadStore) Save(filename string, r io.Reader) (*Upload, error) {
	path, err := u.Path(filename)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(u.Dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	backup, err := u.setAside(path)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		if backup != "" {
			_ = os.Rename(backup, path)
		}
		return nil, fmt.Errorf("storing %s: %w", filepath.Base(path), err)
	}
	return &Upload{Path: path, backup: backup}, nil
}

// setAside moves an existing file at path to a hidden name in the upload
// directory and returns that name, or "" when there was nothing to move.
func (u *UploadStore) setAside(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	f, err := os.CreateTemp(u.Dir, ".replaced-*")
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	f.Close()
	if err := os.Rename(path, f.Name()); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("setting aside %s: %w", filepath.Base(path), err)
	}
	return f.Name(), nil
}

// Commit keeps the new file and drops the one it replaced.
func (up *Upload) Commit() error {
	if up.backup == "" {
		return nil
	}
	if err := os.Remove(up.backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing replaced %s: %w", filepath.Base(up.Path), err)
	}
	up.backup = ""
	return nil
}

// Rollback removes the new file and puts back the one it replaced.
func (up *Upload) Rollback() error {
	if up.backup == "" {
		if err := os.Remove(up.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", filepath.Base(up.Path), err)
		}
		return nil
	}
	if err := os.Rename(up.backup, up.Path); err != nil {
		return fmt.Errorf("restoring %s: %w", filepath.Base(up.Path), err)
	}
	up.backup = ""
	return nil
}

// Delete removes a stored file. Missing files are not an error.
func (u *UploadStore) Delete(filename string) error {
	path, err := u.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", filepath.Base(path), err)
	}
	return nil
}
