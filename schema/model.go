package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldType is the nominal type a definition declares for its documents.
type FieldType string

const (
	Double    FieldType = "double"
	String    FieldType = "string"
	Object    FieldType = "object"
	Array     FieldType = "array"
	ObjectID  FieldType = "objectId"
	Date      FieldType = "date"
	Bool      FieldType = "bool"
	Null      FieldType = "null"
	Regex     FieldType = "regex"
	Int       FieldType = "int"
	Timestamp FieldType = "timestamp"
	Long      FieldType = "long"
	Decimal   FieldType = "decimal"
	UUID      FieldType = "uuid"
	BindData  FieldType = "bindData"
	Mixed     FieldType = "mixed"
)

// DefaultType is used when no --type flag is given.
const DefaultType = Object

// TypeFlagPrefix is the prefix a type flag must carry.
const TypeFlagPrefix = "--type="

var ErrInvalidType = errors.New("invalid type")

var knownTypes = map[FieldType]bool{
	Double: true, String: true, Object: true, Array: true, ObjectID: true,
	Date: true, Bool: true, Null: true, Regex: true, Int: true,
	Timestamp: true, Long: true, Decimal: true, UUID: true, BindData: true,
	Mixed: true,
}

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	return knownTypes[t]
}

// KnownTypes returns every field type, sorted.
func KnownTypes() []string {
	out := make([]string, 0, len(knownTypes))
	for t := range knownTypes {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// HasType reports whether flag has the form --type=<T> with T a known type.
func HasType(flag string) bool {
	if !strings.HasPrefix(flag, TypeFlagPrefix) {
		return false
	}
	return FieldType(strings.TrimPrefix(flag, TypeFlagPrefix)).Valid()
}

// ParseTypeFlag resolves a --type=<T> flag. An empty flag yields DefaultType;
// anything else that fails HasType is rejected.
func ParseTypeFlag(flag string) (FieldType, error) {
	if flag == "" {
		return DefaultType, nil
	}
	if !HasType(flag) {
		return "", fmt.Errorf("%w %q (want %s<%s>)", ErrInvalidType, flag, TypeFlagPrefix, strings.Join(KnownTypes(), "|"))
	}
	return FieldType(strings.TrimPrefix(flag, TypeFlagPrefix)), nil
}

// Definition is the content of a schema or migration file.
type Definition struct {
	Name    string         `yaml:"name" json:"name" bson:"name"`
	Options map[string]any `yaml:"options" json:"options" bson:"options"`
	Type    FieldType      `yaml:"type" json:"type" bson:"type"`
}

// Kind tells which root a definition file was found under.
type Kind string

const (
	KindSchema    Kind = "schema"
	KindMigration Kind = "migration"
)

// File is a definition together with where it was loaded from.
type File struct {
	Path       string
	Kind       Kind
	Collection string
	Definition *Definition
}
