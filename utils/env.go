package utils

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads <dir>/.env into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
