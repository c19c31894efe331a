// Package paths resolves where schema and migration files live and how
// their names map to collection names.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultSchemaDir    = "app/schemas"
	DefaultMigrationDir = "database/migrations"

	// SchemaPrefix may precede a command naming a schema.
	SchemaPrefix = "--schema="

	// FileExt is the extension written for new definition files.
	FileExt = ".yaml"
)

// DefinitionExts are the extensions recognised as definition files.
var DefinitionExts = []string{".yaml", ".yml", ".json"}

// Layout locates the schema and migration roots of a project.
type Layout struct {
	Root         string
	SchemaDir    string
	MigrationDir string
}

// DefaultLayout returns the conventional layout under root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:         root,
		SchemaDir:    DefaultSchemaDir,
		MigrationDir: DefaultMigrationDir,
	}
}

// SchemaRoot is the absolute schema directory.
func (l Layout) SchemaRoot() string {
	return l.abs(l.SchemaDir)
}

// MigrationRoot is the absolute migration directory.
func (l Layout) MigrationRoot() string {
	return l.abs(l.MigrationDir)
}

func (l Layout) abs(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	root := l.Root
	if root == "" {
		root = "."
	}
	if a, err := filepath.Abs(root); err == nil {
		root = a
	}
	return filepath.Join(root, dir)
}

// ModelPath is the directory under the schema root that command's file goes in.
func (l Layout) ModelPath(command string) string {
	return filepath.Join(l.SchemaRoot(), dirPart(command))
}

// MigrationModelPath is ModelPath rooted at the migration directory.
func (l Layout) MigrationModelPath(command string) string {
	return filepath.Join(l.MigrationRoot(), dirPart(command))
}

// SchemaFile is the full path of the schema file for command.
func (l Layout) SchemaFile(command string) string {
	return filepath.Join(l.ModelPath(command), ModelName(command)+FileExt)
}

// MigrationFile is the full path of the migration file for command.
func (l Layout) MigrationFile(command string) string {
	return filepath.Join(l.MigrationModelPath(command), ModelName(command)+FileExt)
}

// ErrEscapesRoot is returned for a command that would place a file
// outside its definition root.
var ErrEscapesRoot = errors.New("path escapes the definition root")

// CheckCommand rejects commands whose directory climbs out of the root or
// whose name is a dot segment.
func CheckCommand(command string) error {
	dir := filepath.Clean(dirPart(command))
	if filepath.IsAbs(dir) || dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrEscapesRoot, command)
	}
	if name := lastPart(command); name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrEscapesRoot, command)
	}
	return nil
}

// ModelName is the last segment of command with its first letter upper-cased.
func ModelName(command string) string {
	last := lastPart(command)
	r, size := utf8.DecodeRuneInString(last)
	if r == utf8.RuneError {
		return last
	}
	return string(unicode.ToUpper(r)) + last[size:]
}

// CollectionName lower-cases the last segment of command and appends an
// "s" unless it already ends in one.
func CollectionName(command string) string {
	name := strings.ToLower(lastPart(command))
	if name == "" || strings.HasSuffix(name, "s") {
		return name
	}
	return name + "s"
}

// StripSchemaPrefix removes a leading --schema= from command.
func StripSchemaPrefix(command string) string {
	return strings.TrimPrefix(command, SchemaPrefix)
}

// NameFromFile strips the directory and a definition extension from path.
func NameFromFile(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if IsDefinitionFile(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// IsDefinitionFile reports whether path has a definition extension.
func IsDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range DefinitionExts {
		if ext == e {
			return true
		}
	}
	return false
}

func segments(command string) []string {
	return strings.Split(command, "/")
}

func lastPart(command string) string {
	parts := segments(command)
	return parts[len(parts)-1]
}

func dirPart(command string) string {
	parts := segments(command)
	return filepath.Join(parts[:len(parts)-1]...)
}
