package transfer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

// imageExtensions are the file types the catalog serves
var imageExtensions = map[string]bool{
	".vhd":  true,
	".vhdx": true,
	".iso":  true,
	".img":  true,
	".xz":   true,
	".7z":   true,
	".zip":  true,
}

// ListLocal returns the finished image files in dir sorted by name.
// Partial downloads and subdirectories are skipped. A missing dir is empty.
func ListLocal(dir string) ([]domain.LocalImage, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}

	var images []domain.LocalImage
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		images = append(images, domain.LocalImage{
			Filename: e.Name(),
			Path:     filepath.Join(dir, e.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })
	return images, nil
}

// DeleteLocal removes one finished image file from dir. Files that
// ListLocal would not show are refused.
func DeleteLocal(dir, filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if !isImage(filename) {
		return fmt.Errorf("%w: %s", domain.ErrLocalImageNotFound, filename)
	}
	path := filepath.Join(dir, filename)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return fmt.Errorf("%w: %s", domain.ErrLocalImageNotFound, filename)
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}

func isImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
