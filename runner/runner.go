package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ridoystarlord/mongrato/database"
	"github.com/ridoystarlord/mongrato/events"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/loader"
	"github.com/ridoystarlord/mongrato/logger"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
	"github.com/ridoystarlord/mongrato/utils"
)

// DefaultConcurrency bounds the number of in-flight createCollection calls.
const DefaultConcurrency = 4

// Options configure a Runner. Zero values pick the defaults.
type Options struct {
	Ledger      ledger.Ledger
	Publisher   events.Publisher
	Logger      *zap.SugaredLogger
	Concurrency int
	Force       bool // re-apply files the ledger already records
	Out         io.Writer
	User        string
}

// Runner applies definition files to the database.
type Runner struct {
	gateway     database.Gateway
	layout      paths.Layout
	ledger      ledger.Ledger
	publisher   events.Publisher
	logger      *zap.SugaredLogger
	concurrency int
	force       bool
	user        string

	outMu sync.Mutex
	out   io.Writer
}

func New(gw database.Gateway, layout paths.Layout, opts Options) *Runner {
	r := &Runner{
		gateway:     gw,
		layout:      layout,
		ledger:      opts.Ledger,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		force:       opts.Force,
		user:        opts.User,
		out:         opts.Out,
	}
	if r.ledger == nil {
		r.ledger = ledger.Noop{}
	}
	if r.publisher == nil {
		r.publisher = &events.NoopPublisher{}
	}
	if r.logger == nil {
		r.logger = logger.Nop()
	}
	if r.concurrency < 1 {
		r.concurrency = DefaultConcurrency
	}
	if r.user == "" {
		r.user = utils.CurrentUser()
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	return r
}

var (
	successColor = color.New(color.FgGreen)
	existsColor  = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed)
)

func (r *Runner) printf(c *color.Color, format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	c.Fprintf(r.out, format, args...)
}

// rel returns path relative to the project root, slash separated. Ledger
// records are keyed by it so a checkout can move.
func (r *Runner) rel(path string) string {
	root, err := filepath.Abs(r.layout.Root)
	if err != nil {
		return filepath.ToSlash(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

type item struct {
	path string
	kind schema.Kind
}

func (r *Runner) newReport() *Report {
	id, err := utils.NewRunID()
	if err != nil {
		id = utils.RunIDPrefix + fmt.Sprint(time.Now().UnixNano())
	}
	return &Report{RunID: id, Started: time.Now()}
}

// applied loads the ledger snapshot a run checks files against.
func (r *Runner) applied(ctx context.Context) (map[string]ledger.Record, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure ledger: %w", err)
	}
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return applied, nil
}

// MigrateFile applies a single definition file.
func (r *Runner) MigrateFile(ctx context.Context, path string, kind schema.Kind) (Outcome, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return Outcome{}, err
	}
	report := r.newReport()
	o := r.migrateFile(ctx, report.RunID, item{path: path, kind: kind}, applied)
	report.Outcomes = []Outcome{o}
	r.finish(ctx, report)
	return o, nil
}

func (r *Runner) migrateFile(ctx context.Context, runID string, it item, applied map[string]ledger.Record) Outcome {
	start := time.Now()
	o := Outcome{File: r.rel(it.path), Kind: it.kind}

	base := paths.NameFromFile(it.path)
	if strings.TrimSpace(base) == "" {
		o.Status, o.Reason = Skipped, "empty collection name"
		return o
	}
	o.Collection = paths.CollectionName(base)
	if !loader.Exists(it.path) {
		o.Status, o.Reason = Skipped, "source file missing"
		r.logger.Debugw("skipping missing definition", "file", o.File)
		return o
	}

	var prev *ledger.Record
	if rec, ok := applied[o.File]; ok {
		prev = &rec
	}
	checksum, err := loader.Checksum(it.path)
	if err != nil {
		return r.fail(ctx, runID, o, start, "", err, prev)
	}
	if prev != nil && prev.Checksum == checksum && !r.force {
		o.Status, o.Reason, o.Namespace = Skipped, "already applied", prev.Namespace
		return o
	}

	f, err := loader.LoadFile(it.path, it.kind)
	if err != nil {
		return r.fail(ctx, runID, o, start, checksum, err, prev)
	}

	r.logger.Debugw("creating collection", "collection", o.Collection, "file", o.File)
	res, err := r.gateway.CreateCollection(ctx, o.Collection, f.Definition)
	o.Duration = time.Since(start)
	switch {
	case err == nil:
		o.Status, o.Namespace = Created, res.Namespace
		r.printf(successColor, "Migrated: %s\n", res.Namespace)
	case database.IsNamespaceExists(err):
		o.Status, o.Reason = AlreadyExists, "collection already exists"
		r.printf(existsColor, "Exists: %s\n", o.Collection)
	default:
		return r.fail(ctx, runID, o, start, checksum, err, prev)
	}
	r.record(ctx, runID, o, checksum, prev)
	return o
}

func (r *Runner) fail(ctx context.Context, runID string, o Outcome, start time.Time, checksum string, err error, prev *ledger.Record) Outcome {
	o.Status, o.Err, o.Reason = Failed, err, err.Error()
	o.Duration = time.Since(start)
	r.printf(errorColor, "Failed: %s: %v\n", o.File, err)
	r.record(ctx, runID, o, checksum, prev)
	return o
}

// ledgerRecord builds the ledger entry for an outcome. A collection this
// tool created stays recorded as created when a re-apply finds it in place
// or fails, so it remains eligible for rollback.
func (r *Runner) ledgerRecord(runID string, o Outcome, checksum string, prev *ledger.Record) (ledger.Record, bool) {
	status, ok := o.Status.ledgerStatus()
	if !ok {
		return ledger.Record{}, false
	}
	rec := ledger.Record{
		File:       o.File,
		Collection: o.Collection,
		Namespace:  o.Namespace,
		Status:     status,
		Checksum:   checksum,
		ExecutedBy: r.user,
		RunID:      runID,
		AppliedAt:  time.Now().UTC(),
		Duration:   o.Duration,
	}
	if o.Status == Failed {
		rec.Error = o.Reason
	}
	if prev == nil || prev.Status != ledger.StatusCreated {
		return rec, true
	}
	switch o.Status {
	case AlreadyExists:
		rec.Status, rec.Namespace = ledger.StatusCreated, prev.Namespace
	case Failed:
		// Keep the applied checksum so status reports the file as changed.
		rec.Status, rec.Namespace, rec.Checksum = ledger.StatusCreated, prev.Namespace, prev.Checksum
	}
	return rec, true
}

// record writes the outcome to the ledger, the activity log and the event
// bus. Bookkeeping errors are logged and never change the outcome.
func (r *Runner) record(ctx context.Context, runID string, o Outcome, checksum string, prev *ledger.Record) {
	rec, ok := r.ledgerRecord(runID, o, checksum, prev)
	if !ok {
		return
	}
	var errMsg string
	if o.Status == Failed {
		errMsg = o.Reason
	}
	err := r.ledger.Record(ctx, rec)
	if err != nil {
		r.logger.Errorw("failed to record migration", "file", o.File, "error", err)
	}

	entry := ledger.Entry{File: o.File, User: r.user, Details: fmt.Sprintf("Execution time: %v", o.Duration)}
	topic := events.TopicCollectionCreated
	switch o.Status {
	case Created:
		entry.Level, entry.Message = ledger.LevelSuccess, fmt.Sprintf("Collection created: %s", o.Namespace)
	case AlreadyExists:
		entry.Level, entry.Message = ledger.LevelInfo, fmt.Sprintf("Collection already exists: %s", o.Collection)
		topic = events.TopicCollectionExists
	case Failed:
		entry.Level, entry.Message, entry.Details = ledger.LevelError, fmt.Sprintf("Migration failed: %s", o.File), o.Reason
		topic = events.TopicCollectionFailed
	}
	if err := r.ledger.Log(ctx, entry); err != nil {
		r.logger.Warnw("failed to write migration log", "file", o.File, "error", err)
	}

	ev := events.CollectionEvent{
		RunID:      runID,
		File:       o.File,
		Collection: o.Collection,
		Namespace:  o.Namespace,
		Error:      errMsg,
		At:         time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, topic, ev); err != nil {
		r.logger.Warnw("failed to publish event", "topic", topic, "error", err)
	}
}

// run applies items through a bounded pool. Outcomes keep the order of
// items whatever the completion order.
func (r *Runner) run(ctx context.Context, report *Report, items []item, applied map[string]ledger.Record) {
	outcomes := make([]Outcome, len(items))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, it := range items {
		if ctx.Err() != nil {
			outcomes[i] = Outcome{File: r.rel(it.path), Kind: it.kind, Status: Skipped, Reason: "cancelled"}
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.migrateFile(ctx, report.RunID, it, applied)
			return nil
		})
	}
	g.Wait()

	report.Outcomes = append(report.Outcomes, outcomes...)
}

func (r *Runner) scan(dir string, kind schema.Kind) ([]item, error) {
	files, err := loader.DefinitionFiles(dir)
	if err != nil {
		return nil, err
	}
	items := make([]item, 0, len(files))
	for _, f := range files {
		// The file may have gone away since the walk.
		if !loader.Exists(f) {
			continue
		}
		items = append(items, item{path: f, kind: kind})
	}
	return items, nil
}

func (r *Runner) migrateDirs(ctx context.Context, dirs ...item) (*Report, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	report := r.newReport()
	for _, d := range dirs {
		if !loader.DirExists(d.path) {
			r.logger.Debugw("definition root missing", "dir", d.path)
			continue
		}
		items, err := r.scan(d.path, d.kind)
		if err != nil {
			return nil, err
		}
		r.run(ctx, report, items, applied)
	}
	r.finish(ctx, report)
	return report, nil
}

// MigrateAllSchemas applies every definition under the schema root.
func (r *Runner) MigrateAllSchemas(ctx context.Context) (*Report, error) {
	return r.migrateDirs(ctx, item{path: r.layout.SchemaRoot(), kind: schema.KindSchema})
}

// MigrateAllMigrations applies every definition under the migration root.
func (r *Runner) MigrateAllMigrations(ctx context.Context) (*Report, error) {
	return r.migrateDirs(ctx, item{path: r.layout.MigrationRoot(), kind: schema.KindMigration})
}

// MigrateAll applies the schema batch then the migration batch. A
// collection defined in both roots is attempted twice.
func (r *Runner) MigrateAll(ctx context.Context) (*Report, error) {
	return r.migrateDirs(ctx,
		item{path: r.layout.SchemaRoot(), kind: schema.KindSchema},
		item{path: r.layout.MigrationRoot(), kind: schema.KindMigration},
	)
}

// namedItems resolves "--schema=<Name>" to the schema file and, when
// present, the migration file of the same name.
func (r *Runner) namedItems(command string) ([]item, error) {
	command = paths.StripSchemaPrefix(command)
	if paths.ModelName(command) == "" {
		return nil, fmt.Errorf("a schema name is required")
	}
	if err := paths.CheckCommand(command); err != nil {
		return nil, err
	}
	items := []item{{path: r.layout.SchemaFile(command), kind: schema.KindSchema}}
	if mig := r.layout.MigrationFile(command); loader.Exists(mig) {
		items = append(items, item{path: mig, kind: schema.KindMigration})
	}
	return items, nil
}

// MigrateNamed applies the schema named by command, plus its migration.
func (r *Runner) MigrateNamed(ctx context.Context, command string) (*Report, error) {
	items, err := r.namedItems(command)
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	report := r.newReport()
	r.run(ctx, report, items, applied)
	r.finish(ctx, report)
	return report, nil
}

func (r *Runner) finish(ctx context.Context, report *Report) {
	report.Duration = time.Since(report.Started)
	counts := report.Counts()

	level := ledger.LevelSuccess
	if report.Failed() {
		level = ledger.LevelError
	}
	err := r.ledger.Log(ctx, ledger.Entry{
		Level:   level,
		Message: fmt.Sprintf("Run %s completed", report.RunID),
		User:    r.user,
		Details: fmt.Sprintf("created=%d exists=%d skipped=%d failed=%d duration=%v",
			counts[string(Created)], counts[string(AlreadyExists)], counts[string(Skipped)], counts[string(Failed)], report.Duration),
	})
	if err != nil {
		r.logger.Warnw("failed to write migration log", "error", err)
	}
	err = r.publisher.Publish(ctx, events.TopicRunCompleted, events.RunCompleted{
		RunID:    report.RunID,
		Counts:   counts,
		Duration: report.Duration,
		At:       time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warnw("failed to publish event", "topic", events.TopicRunCompleted, "error", err)
	}
	r.logger.Infow("migrate run finished", "run_id", report.RunID, "counts", counts, "duration", report.Duration)
}
