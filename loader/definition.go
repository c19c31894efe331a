package loader

import (
	"crypto/sha256"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
	"github.com/ridoystarlord/mongrato/validator"
)

// definitionFile mirrors schema.Definition with loosely typed fields so
// shape errors can be reported instead of failing the decode.
type definitionFile struct {
	Name    any `yaml:"name"`
	Options any `yaml:"options"`
	Type    any `yaml:"type"`
}

// LoadDefinition reads and checks a definition file. YAML and JSON are
// both accepted.
func LoadDefinition(path string) (*schema.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition file: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes definition content.
func ParseDefinition(data []byte) (*schema.Definition, error) {
	var df definitionFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("unmarshalling definition: %w", err)
	}

	def := &schema.Definition{
		Options: map[string]any{},
		Type:    schema.DefaultType,
	}

	if df.Name != nil {
		if !validator.IsString(df.Name) {
			return nil, fmt.Errorf("name: want string, got %T", df.Name)
		}
		def.Name = df.Name.(string)
	}

	if df.Options != nil {
		if !validator.IsObject(df.Options) {
			return nil, fmt.Errorf("options: want object, got %T", df.Options)
		}
		def.Options = df.Options.(map[string]any)
	}

	if df.Type != nil {
		if !validator.IsString(df.Type) {
			return nil, fmt.Errorf("type: want string, got %T", df.Type)
		}
		t := schema.FieldType(df.Type.(string))
		if !t.Valid() {
			return nil, fmt.Errorf("%w %q", schema.ErrInvalidType, t)
		}
		def.Type = t
	}

	return def, nil
}

// LoadFile loads path as a schema.File of the given kind.
func LoadFile(path string, kind schema.Kind) (schema.File, error) {
	f := schema.File{
		Path:       path,
		Kind:       kind,
		Collection: paths.CollectionName(paths.NameFromFile(path)),
	}
	def, err := LoadDefinition(path)
	if err != nil {
		return f, err
	}
	f.Definition = def
	return f, nil
}

// LoadDir loads every definition under dir. Files that fail to load are
// returned with a nil Definition and their errors collected.
func LoadDir(dir string, kind schema.Kind) ([]schema.File, []error) {
	names, err := DefinitionFiles(dir)
	if err != nil {
		return nil, []error{err}
	}
	var files []schema.File
	var errs []error
	for _, name := range names {
		f, err := LoadFile(name, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		files = append(files, f)
	}
	return files, errs
}

// Checksum is the hex sha256 of a file's content.
func Checksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
