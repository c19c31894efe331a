package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ridoystarlord/mongrato/events"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/loader"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
)

// Action is what a migrate run would do with a file.
type Action string

const (
	ActionCreate  Action = "create"
	ActionExists  Action = "exists"
	ActionApplied Action = "applied"
	ActionMissing Action = "missing"
	ActionInvalid Action = "invalid"
)

// Planned is one line of a dry run.
type Planned struct {
	File       string
	Kind       schema.Kind
	Collection string
	Action     Action
	Definition *schema.Definition
	Err        error
}

// allItems lists the definition files under both roots.
func (r *Runner) allItems() ([]item, error) {
	var items []item
	for _, d := range []item{
		{path: r.layout.SchemaRoot(), kind: schema.KindSchema},
		{path: r.layout.MigrationRoot(), kind: schema.KindMigration},
	} {
		found, err := r.scan(d.path, d.kind)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

// Preview reports what migrate would do without creating anything. An
// empty command previews every file; otherwise it is a --schema= name.
func (r *Runner) Preview(ctx context.Context, command string) ([]Planned, error) {
	var (
		items []item
		err   error
	)
	if command == "" {
		items, err = r.allItems()
	} else {
		items, err = r.namedItems(command)
	}
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	plan := make([]Planned, 0, len(items))
	for _, it := range items {
		p := Planned{
			File:       r.rel(it.path),
			Kind:       it.kind,
			Collection: paths.CollectionName(paths.NameFromFile(it.path)),
		}
		if !loader.Exists(it.path) {
			p.Action = ActionMissing
			plan = append(plan, p)
			continue
		}
		f, err := loader.LoadFile(it.path, it.kind)
		if err != nil {
			p.Action, p.Err = ActionInvalid, err
			plan = append(plan, p)
			continue
		}
		p.Definition = f.Definition

		checksum, err := loader.Checksum(it.path)
		if err != nil {
			return nil, err
		}
		if rec, ok := applied[p.File]; ok && rec.Checksum == checksum && !r.force {
			p.Action = ActionApplied
			plan = append(plan, p)
			continue
		}

		exists, err := r.gateway.CollectionExists(ctx, p.Collection)
		if err != nil {
			return nil, fmt.Errorf("check collection %s: %w", p.Collection, err)
		}
		p.Action = ActionCreate
		if exists {
			p.Action = ActionExists
		}
		plan = append(plan, p)
	}
	return plan, nil
}

// StatusReport compares the definition files on disk with the ledger.
type StatusReport struct {
	Applied  []ledger.Record
	Changed  []ledger.Record // applied, but the file has changed since
	Pending  []string
	Failed   []ledger.Record
	Orphaned []ledger.Record // applied, but the file is gone
}

func (r *Runner) Status(ctx context.Context) (*StatusReport, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	failedRecs, err := r.ledger.History(ctx, ledger.Filter{Status: ledger.StatusFailed})
	if err != nil {
		return nil, fmt.Errorf("load failed migrations: %w", err)
	}
	failed := map[string]ledger.Record{}
	for _, rec := range failedRecs {
		failed[rec.File] = rec
	}

	items, err := r.allItems()
	if err != nil {
		return nil, err
	}

	st := &StatusReport{}
	seen := map[string]bool{}
	for _, it := range items {
		file := r.rel(it.path)
		seen[file] = true
		if rec, ok := applied[file]; ok {
			checksum, err := loader.Checksum(it.path)
			if err != nil {
				return nil, err
			}
			if checksum == rec.Checksum {
				st.Applied = append(st.Applied, rec)
			} else {
				st.Changed = append(st.Changed, rec)
			}
			continue
		}
		if rec, ok := failed[file]; ok {
			st.Failed = append(st.Failed, rec)
			continue
		}
		st.Pending = append(st.Pending, file)
	}
	for file, rec := range applied {
		if !seen[file] {
			st.Orphaned = append(st.Orphaned, rec)
		}
	}
	sortNewestFirst(st.Orphaned)
	return st, nil
}

// Rollback drops the collections created by the last steps ledger entries
// and removes those entries. Entries that found the collection already in
// place are never rolled back.
func (r *Runner) Rollback(ctx context.Context, steps int) ([]ledger.Record, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be at least 1, got %d", steps)
	}
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure ledger: %w", err)
	}
	recs, err := r.ledger.History(ctx, ledger.Filter{Status: ledger.StatusCreated, Limit: steps})
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}

	var done []ledger.Record
	for _, rec := range recs {
		start := time.Now()
		r.logActivity(ctx, ledger.LevelInfo, fmt.Sprintf("Starting rollback: %s", rec.File), rec.File, "Rollback execution started")

		if err := r.gateway.DropCollection(ctx, rec.Collection); err != nil {
			r.logActivity(ctx, ledger.LevelError, fmt.Sprintf("Rollback failed: %s", rec.File), rec.File, err.Error())
			r.printf(errorColor, "Failed: %s: %v\n", rec.File, err)
			return done, fmt.Errorf("dropping %s: %w", rec.Collection, err)
		}
		if err := r.ledger.Remove(ctx, rec.File); err != nil {
			return done, fmt.Errorf("removing migration record for %s: %w", rec.File, err)
		}

		r.logActivity(ctx, ledger.LevelSuccess, fmt.Sprintf("Rollback completed: %s", rec.File), rec.File,
			fmt.Sprintf("Execution time: %v", time.Since(start)))
		r.printf(successColor, "Dropped: %s\n", rec.Collection)
		err := r.publisher.Publish(ctx, events.TopicCollectionDropped, events.CollectionEvent{
			RunID:      rec.RunID,
			File:       rec.File,
			Collection: rec.Collection,
			Namespace:  rec.Namespace,
			At:         time.Now().UTC(),
		})
		if err != nil {
			r.logger.Warnw("failed to publish event", "topic", events.TopicCollectionDropped, "error", err)
		}
		done = append(done, rec)
	}
	return done, nil
}

func (r *Runner) logActivity(ctx context.Context, level, message, file, details string) {
	err := r.ledger.Log(ctx, ledger.Entry{Level: level, Message: message, File: file, Details: details, User: r.user})
	if err != nil {
		r.logger.Warnw("failed to write migration log", "file", file, "error", err)
	}
}
