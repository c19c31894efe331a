package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ridoystarlord/mongrato/schema"
)

// maxCollectionNameBytes bounds namespace length (db + "." + collection).
const maxCollectionNameBytes = 235

// IsObject reports whether v is a decoded document.
func IsObject(v any) bool {
	switch v.(type) {
	case map[string]any, bson.M, bson.D:
		return true
	}
	return false
}

// IsArray reports whether v is a slice or array other than raw bytes.
func IsArray(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	if _, ok := v.(bson.D); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func IsString(v any) bool {
	_, ok := v.(string)
	return ok
}

func IsNumber(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// IsValidObjectID reports whether s is a 24 character hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := bson.ObjectIDFromHex(s)
	return err == nil
}

// IsValid reports whether s matches pattern.
func IsValid(pattern *regexp.Regexp, s string) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(s)
}

var collectionNamePattern = regexp.MustCompile(`^[^$\x00]+$`)

// IsCollectionName applies MongoDB's collection naming rules.
func IsCollectionName(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > maxCollectionNameBytes {
		return false
	}
	if strings.HasPrefix(s, "system.") {
		return false
	}
	return IsValid(collectionNamePattern, s)
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Type       string `json:"type"`
	File       string `json:"file,omitempty"`
	Collection string `json:"collection,omitempty"`
	Option     string `json:"option,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}
}

func (r *ValidationResult) addError(e ValidationError) {
	e.Severity = "error"
	r.Errors = append(r.Errors, e)
}

func (r *ValidationResult) addWarning(e ValidationError) {
	e.Severity = "warning"
	r.Warnings = append(r.Warnings, e)
}

func (r *ValidationResult) addInfo(e ValidationError) {
	e.Severity = "info"
	r.Info = append(r.Info, e)
}

// DefinitionValidator checks loaded definition files. Existing, when set,
// holds the collections already present in the database.
type DefinitionValidator struct {
	Existing map[string]bool
}

// Validate checks every file and the set as a whole.
func (v *DefinitionValidator) Validate(files []schema.File) *ValidationResult {
	result := newResult()

	seen := map[string][]string{}
	for _, f := range files {
		v.validateFile(f, result)
		if f.Collection != "" {
			seen[f.Collection] = append(seen[f.Collection], f.Path)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(seen[name]) > 1 {
			result.addWarning(ValidationError{
				Type:       "duplicate_collection",
				Collection: name,
				Message:    fmt.Sprintf("collection '%s' is defined by %d files: %s", name, len(seen[name]), strings.Join(seen[name], ", ")),
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (v *DefinitionValidator) validateFile(f schema.File, result *ValidationResult) {
	if f.Definition == nil {
		result.addError(ValidationError{
			Type:    "empty_definition",
			File:    f.Path,
			Message: "file does not contain a definition",
		})
		return
	}
	def := f.Definition

	if !IsCollectionName(f.Collection) {
		result.addError(ValidationError{
			Type:       "collection_name",
			File:       f.Path,
			Collection: f.Collection,
			Message:    fmt.Sprintf("'%s' is not a valid collection name", f.Collection),
		})
	}

	if def.Name != "" && def.Name != f.Collection {
		result.addWarning(ValidationError{
			Type:       "name_mismatch",
			File:       f.Path,
			Collection: f.Collection,
			Message:    fmt.Sprintf("declared name '%s' differs from file-derived name '%s'; the file name wins", def.Name, f.Collection),
		})
	}

	if !def.Type.Valid() {
		result.addError(ValidationError{
			Type:       "field_type",
			File:       f.Path,
			Collection: f.Collection,
			Message:    fmt.Sprintf("unknown type '%s' (known: %s)", def.Type, strings.Join(schema.KnownTypes(), ", ")),
		})
	}

	keys := make([]string, 0, len(def.Options))
	for k := range def.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !schema.IsSupportedOption(k) {
			result.addWarning(ValidationError{
				Type:       "unknown_option",
				File:       f.Path,
				Collection: f.Collection,
				Option:     k,
				Message:    fmt.Sprintf("option '%s' is not passed to the database", k),
			})
		}
	}
	if val, ok := def.Options["validator"]; ok && !IsObject(val) {
		result.addError(ValidationError{
			Type:       "option_type",
			File:       f.Path,
			Collection: f.Collection,
			Option:     "validator",
			Message:    "validator must be an object",
		})
	}
	if _, err := def.CollectionOptions(); err != nil {
		result.addError(ValidationError{
			Type:       "option_value",
			File:       f.Path,
			Collection: f.Collection,
			Message:    err.Error(),
		})
	}

	if v.Existing[f.Collection] {
		result.addInfo(ValidationError{
			Type:       "collection_exists",
			File:       f.Path,
			Collection: f.Collection,
			Message:    fmt.Sprintf("collection '%s' already exists in the database", f.Collection),
		})
	}
}
