package diff

import (
	"fmt"
	"sort"

	"github.com/ridoystarlord/mongrato/introspect"
	"github.com/ridoystarlord/mongrato/schema"
)

type OperationType string

const (
	CreateCollection    OperationType = "CREATE_COLLECTION"
	CollectionExists    OperationType = "COLLECTION_EXISTS"
	UntrackedCollection OperationType = "UNTRACKED_COLLECTION"
	OptionsDrift        OperationType = "OPTIONS_DRIFT"
)

type Operation struct {
	Type       OperationType `json:"type"`
	Collection string        `json:"collection"`
	File       string        `json:"file,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// Diff compares definition files with the live collections. Definitions are
// reported in the order given, then untracked collections by name. Collections
// named in ignore (the ledger's own) are never reported as untracked.
func Diff(files []schema.File, existing []introspect.ExistingCollection, ignore ...string) []Operation {
	var ops []Operation

	existingMap := map[string]introspect.ExistingCollection{}
	for _, c := range existing {
		existingMap[c.Name] = c
	}
	defined := map[string]bool{}
	for _, name := range ignore {
		defined[name] = true
	}

	for _, f := range files {
		if defined[f.Collection] {
			continue
		}
		defined[f.Collection] = true

		live, exists := existingMap[f.Collection]
		if !exists {
			ops = append(ops, Operation{Type: CreateCollection, Collection: f.Collection, File: f.Path})
			continue
		}
		ops = append(ops, Operation{Type: CollectionExists, Collection: f.Collection, File: f.Path})
		if detail := drift(f.Definition, live); detail != "" {
			ops = append(ops, Operation{Type: OptionsDrift, Collection: f.Collection, File: f.Path, Detail: detail})
		}
	}

	var untracked []string
	for _, c := range existing {
		if !defined[c.Name] {
			untracked = append(untracked, c.Name)
		}
	}
	sort.Strings(untracked)
	for _, name := range untracked {
		ops = append(ops, Operation{Type: UntrackedCollection, Collection: name})
	}
	return ops
}

// drift describes option differences that createCollection cannot fix on an
// existing collection.
func drift(def *schema.Definition, live introspect.ExistingCollection) string {
	var opts map[string]any
	if def != nil {
		opts = def.Options
	}
	wantCapped, _ := opts["capped"].(bool)
	if wantCapped != live.Capped {
		return fmt.Sprintf("capped: definition %t, database %t", wantCapped, live.Capped)
	}
	_, wantTS := opts["timeseries"]
	if wantTS != (live.Type == "timeseries") {
		return fmt.Sprintf("timeseries: definition %t, database type %q", wantTS, live.Type)
	}
	return ""
}

// Counts tallies operations by type.
func Counts(ops []Operation) map[OperationType]int {
	counts := map[OperationType]int{}
	for _, op := range ops {
		counts[op.Type]++
	}
	return counts
}
