package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ridoystarlord/mongrato/paths"
)

// GetAllFiles walks dir depth-first and returns the absolute path of every
// non-directory entry. A missing directory yields an empty result.
func GetAllFiles(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	files := []string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if path == root {
					return filepath.SkipAll
				}
				// Removed while walking.
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// DefinitionFiles returns the files under dir that look like definitions.
func DefinitionFiles(dir string) ([]string, error) {
	all, err := GetAllFiles(dir)
	if err != nil {
		return nil, err
	}
	var defs []string
	for _, f := range all {
		if paths.IsDefinitionFile(f) {
			defs = append(defs, f)
		}
	}
	return defs, nil
}

// Exists reports whether path exists and is a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
