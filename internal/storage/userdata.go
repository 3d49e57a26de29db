package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Layout maps user ids to their on-disk data directories. Each user owns
//
//	<base>/<user_id>/uploads/   raw uploaded files
//	<base>/<user_id>/index/     chunk list + similarity index artifact
//
// User data lives outside the repository tree so redeploys never touch it.
type Layout struct {
	base string
}

func NewLayout(base string) *Layout {
	return &Layout{base: base}
}

func (l *Layout) UploadsDir(userID uint) string {
	return filepath.Join(l.base, strconv.FormatUint(uint64(userID), 10), "uploads")
}

func (l *Layout) IndexDir(userID uint) string {
	return filepath.Join(l.base, strconv.FormatUint(uint64(userID), 10), "index")
}

// EnsureUserDirs creates the uploads and index directories for a user.
func (l *Layout) EnsureUserDirs(userID uint) error {
	for _, dir := range []string{l.UploadsDir(userID), l.IndexDir(userID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create user dir %s failed: %w", dir, err)
		}
	}
	return nil
}

// SaveUpload streams src into the user's uploads directory and returns the
// stored path.
func (l *Layout) SaveUpload(userID uint, filename string, src io.Reader) (string, error) {
	if err := l.EnsureUserDirs(userID); err != nil {
		return "", err
	}

	// Uploaded names can contain path separators; keep the base name only.
	dst := filepath.Join(l.UploadsDir(userID), filepath.Base(filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("write upload file failed: %w", err)
	}
	return dst, nil
}

// RemoveFile deletes a stored file, tolerating files that are already gone.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file failed: %w", err)
	}
	return nil
}
