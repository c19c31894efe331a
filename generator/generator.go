package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/mongrato/loader"
	"github.com/ridoystarlord/mongrato/logger"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
)

// Status is what a Make call did.
type Status string

const (
	Created Status = "created"
	Exists  Status = "exists"
)

// Result describes the file a Make call targeted.
type Result struct {
	Path       string
	Collection string
	Type       schema.FieldType
	Status     Status
}

// Writer scaffolds definition files under a project layout.
type Writer struct {
	Layout paths.Layout
	Logger *zap.SugaredLogger
}

// New returns a Writer for layout.
func New(layout paths.Layout, l *zap.SugaredLogger) *Writer {
	if l == nil {
		l = logger.Nop()
	}
	return &Writer{Layout: layout, Logger: l}
}

// MakeSchema writes app/schemas/<...>/<Name>.yaml for command.
func (w *Writer) MakeSchema(command, typeFlag string) (Result, error) {
	command = paths.StripSchemaPrefix(command)
	return w.make(w.Layout.ModelPath(command), command, typeFlag)
}

// MakeMigration writes database/migrations/<...>/<Name>.yaml for command.
func (w *Writer) MakeMigration(command, typeFlag string) (Result, error) {
	command = paths.StripSchemaPrefix(command)
	return w.make(w.Layout.MigrationModelPath(command), command, typeFlag)
}

func (w *Writer) make(dir, command, typeFlag string) (Result, error) {
	if paths.ModelName(command) == "" {
		return Result{}, fmt.Errorf("name is required")
	}
	if err := paths.CheckCommand(command); err != nil {
		return Result{}, err
	}

	fieldType, err := schema.ParseTypeFlag(typeFlag)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	res := Result{
		Path:       filepath.Join(dir, paths.ModelName(command)+paths.FileExt),
		Collection: paths.CollectionName(command),
		Type:       fieldType,
	}

	if loader.Exists(res.Path) {
		w.Logger.Debugw("definition already exists", "path", res.Path)
		res.Status = Exists
		return res, nil
	}

	content, err := Render(res.Collection, fieldType)
	if err != nil {
		return Result{}, err
	}

	// O_EXCL keeps the first writer's content if two runs race.
	f, err := os.OpenFile(res.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			res.Status = Exists
			return res, nil
		}
		return Result{}, fmt.Errorf("writing definition file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return Result{}, fmt.Errorf("writing definition file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("writing definition file: %w", err)
	}

	w.Logger.Debugw("definition written", "path", res.Path, "collection", res.Collection, "type", fieldType)
	res.Status = Created
	return res, nil
}

// Render produces the content of a new definition file.
func Render(collection string, fieldType schema.FieldType) ([]byte, error) {
	def := schema.Definition{
		Name:    collection,
		Options: map[string]any{},
		Type:    fieldType,
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Collection definition for %s.\n", collection)
	fmt.Fprintf(&buf, "# options are passed to createCollection (capped, size, max, validator, ...).\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("rendering definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("rendering definition: %w", err)
	}
	return buf.Bytes(), nil
}
