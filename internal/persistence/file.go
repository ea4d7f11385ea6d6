package persistence

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/gravitas-games/craftd/internal/inventory"
)

// FileStore writes one zstd-compressed JSON file per owner and category.
// Writes go to a temp file first and are renamed into place.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("persistence: empty file store dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(owner inventory.OwnerID, category inventory.Category) string {
	// Owner ids come from token subjects; escape them before they touch the filesystem.
	name := url.PathEscape(string(owner)) + "." + url.PathEscape(string(category)) + ".json.zst"
	return filepath.Join(s.dir, name)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, owner inventory.OwnerID, category inventory.Category) (inventory.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Snapshot{}, err
	}
	f, err := os.Open(s.path(owner, category))
	if errors.Is(err, os.ErrNotExist) {
		return inventory.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return inventory.Snapshot{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return inventory.Snapshot{}, err
	}
	defer dec.Close()

	data, err := io.ReadAll(bufio.NewReader(dec))
	if err != nil {
		return inventory.Snapshot{}, fmt.Errorf("persistence: read %s: %w", owner, err)
	}
	return decode(data)
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, owner inventory.OwnerID, category inventory.Category, snap inventory.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	final := s.path(owner, category)
	tmp, err := os.CreateTemp(s.dir, ".snap-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeCompressed(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write %s: %w", owner, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), final)
}

func writeCompressed(w io.Writer, data []byte) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
