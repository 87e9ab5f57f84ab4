package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) *LocalStorage {
	return &LocalStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Save(ctx context.Context, folder, filename string, r io.Reader) (Asset, error) {
	if err := os.MkdirAll(filepath.Join(s.dir, folder), os.ModePerm); err != nil {
		return Asset{}, fmt.Errorf("create upload folder: %w", err)
	}

	key := path.Join(folder, objectName(filename))
	f, err := os.Create(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		return Asset{}, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return Asset{}, fmt.Errorf("write file: %w", err)
	}

	return Asset{URL: s.baseURL + "/" + key, Key: key}, nil
}

// Delete removes the file; a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, asset Asset) error {
	if asset.Key == "" {
		return nil
	}

	// Rooting the key before cleaning keeps it inside dir.
	clean := path.Clean("/" + asset.Key)
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
