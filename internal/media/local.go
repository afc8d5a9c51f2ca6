package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// LocalStore persists artifacts as plain files under a directory. It is
// the default MediaStore backend (spec.md's config default for
// UploadsDir); S3Store (s3.go) is the optional large-album alternative.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if absent.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create uploads dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save copies r to a new file under the store's directory, rejecting
// anything larger than MaxFileSize. The returned ref is the generated
// filename, safe to store as Post.FileRef.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	ref := generateUniqueFilename(name)
	dst, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("media: create file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		os.Remove(filepath.Join(s.dir, ref))
		return "", fmt.Errorf("media: write file: %w", err)
	}
	if n > MaxFileSize {
		os.Remove(filepath.Join(s.dir, ref))
		return "", &ErrTooLarge{Bytes: n}
	}
	return ref, nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("media: open %s: %w", ref, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if err := os.Remove(filepath.Join(s.dir, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: delete %s: %w", ref, err)
	}
	return nil
}

func (s *LocalStore) Size(ctx context.Context, ref string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.dir, ref))
	if err != nil {
		return 0, fmt.Errorf("media: stat %s: %w", ref, err)
	}
	return info.Size(), nil
}

// Sweep deletes every file older than olderThan (except .gitkeep),
// returning the refs it removed. Grounded on the original implementation's
// cleanup_old_files, generalized from a fixed day count to an explicit
// cutoff chosen by internal/monitor.
func (s *LocalStore) Sweep(ctx context.Context, olderThan time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("media: read uploads dir: %w", err)
	}

	var removed []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == ".gitkeep" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(olderThan) {
			if err := s.Delete(ctx, e.Name()); err == nil {
				removed = append(removed, e.Name())
			}
		}
	}
	return removed, nil
}

// HumanSize renders a byte count the way CLI diagnostics and FileTooLarge
// guidance messages present it to operators.
func HumanSize(bytes int64) string {
	return humanize.Bytes(uint64(bytes))
}

func generateUniqueFilename(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString(), ext)
}
