package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/mongrato/database"
	"github.com/ridoystarlord/mongrato/events"
	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/paths"
	"github.com/ridoystarlord/mongrato/schema"
)

type fakeGateway struct {
	mu      sync.Mutex
	created map[string]bool
	calls   []string
	defs    map[string]*schema.Definition
	dropped []string
	fail    map[string]error
	delay   map[string]time.Duration

	// When barrier > 0, CreateCollection blocks until that many calls are
	// in flight at once.
	barrier int
	arrived int
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		created: map[string]bool{},
		defs:    map[string]*schema.Definition{},
		fail:    map[string]error{},
		delay:   map[string]time.Duration{},
		release: make(chan struct{}),
	}
}

func (g *fakeGateway) CreateCollection(ctx context.Context, name string, def *schema.Definition) (database.CreateResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	g.defs[name] = def
	delay := g.delay[name]
	if g.barrier > 0 {
		g.arrived++
		if g.arrived == g.barrier {
			close(g.release)
		}
	}
	barrier := g.barrier
	g.mu.Unlock()

	if barrier > 0 {
		select {
		case <-g.release:
		case <-time.After(2 * time.Second):
			return database.CreateResult{}, errors.New("calls were not dispatched concurrently")
		}
	}
	time.Sleep(delay)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[name]; err != nil {
		return database.CreateResult{}, err
	}
	if g.created[name] {
		return database.CreateResult{}, fmt.Errorf("%w: test.%s", database.ErrCollectionExists, name)
	}
	g.created[name] = true
	return database.CreateResult{Namespace: "test." + name}, nil
}

func (g *fakeGateway) DropCollection(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["drop:"+name]; err != nil {
		return err
	}
	delete(g.created, name)
	g.dropped = append(g.dropped, name)
	return nil
}

func (g *fakeGateway) CollectionExists(ctx context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.created[name], nil
}

func (g *fakeGateway) Ping(ctx context.Context) error  { return nil }
func (g *fakeGateway) Close(ctx context.Context) error { return nil }

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var _ events.Publisher = (*recordingPublisher)(nil)

const ordersYAML = "name: orders\noptions: {}\ntype: object\n"

func writeDef(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type fixture struct {
	root   string
	layout paths.Layout
	gw     *fakeGateway
	ledger *ledger.Memory
	pub    *recordingPublisher
	out    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	root := t.TempDir()
	return &fixture{
		root:   root,
		layout: paths.DefaultLayout(root),
		gw:     newFakeGateway(),
		ledger: ledger.NewMemory(),
		pub:    &recordingPublisher{},
		out:    &bytes.Buffer{},
	}
}

func (f *fixture) runner(opts Options) *Runner {
	opts.Ledger = f.ledger
	opts.Publisher = f.pub
	opts.Out = f.out
	opts.User = "tester"
	return New(f.gw, f.layout, opts)
}

func (f *fixture) schema(t *testing.T, rel, content string) string {
	path := filepath.Join(f.layout.SchemaRoot(), rel)
	writeDef(t, path, content)
	return path
}

func (f *fixture) migration(t *testing.T, rel, content string) string {
	path := filepath.Join(f.layout.MigrationRoot(), rel)
	writeDef(t, path, content)
	return path
}

func TestMigrateAllEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "orders.yaml", ordersYAML)
	require.NoError(t, os.MkdirAll(f.layout.MigrationRoot(), 0o755))

	report, err := f.runner(Options{}).MigrateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, f.gw.calls)
	assert.Equal(t, &schema.Definition{Name: "orders", Options: map[string]any{}, Type: schema.Object}, f.gw.defs["orders"])
	assert.Contains(t, f.out.String(), "Migrated: test.orders")
	require.Len(t, report.Outcomes, 1)
	o := report.Outcomes[0]
	assert.Equal(t, Created, o.Status)
	assert.Equal(t, "app/schemas/orders.yaml", o.File)
	assert.Equal(t, "test.orders", o.Namespace)
	assert.False(t, report.Failed())
	assert.Contains(t, report.RunID, "run-")

	applied, err := f.ledger.Applied(context.Background())
	require.NoError(t, err)
	require.Contains(t, applied, "app/schemas/orders.yaml")
	assert.Equal(t, "tester", applied["app/schemas/orders.yaml"].ExecutedBy)
	assert.Equal(t, report.RunID, applied["app/schemas/orders.yaml"].RunID)

	assert.Equal(t, []string{events.TopicCollectionCreated, events.TopicRunCompleted}, f.pub.topics)
}

func TestMigrateFileSkipsMissingSource(t *testing.T) {
	f := newFixture(t)
	r := f.runner(Options{})

	o, err := r.MigrateFile(context.Background(), filepath.Join(f.layout.SchemaRoot(), "Gone.yaml"), schema.KindSchema)
	require.NoError(t, err)
	assert.Equal(t, Skipped, o.Status)
	assert.Equal(t, "source file missing", o.Reason)
	assert.Zero(t, f.gw.callCount())

	n, _ := f.ledger.Count(context.Background())
	assert.Zero(t, n, "skipped files are not recorded")
}

func TestMigrateFileSkipsEmptyName(t *testing.T) {
	f := newFixture(t)
	path := f.schema(t, " .yaml", ordersYAML)

	o, err := f.runner(Options{}).MigrateFile(context.Background(), path, schema.KindSchema)
	require.NoError(t, err)
	assert.Equal(t, Skipped, o.Status)
	assert.Zero(t, f.gw.callCount())
}

func TestRunSkipsFileDeletedAfterScan(t *testing.T) {
	f := newFixture(t)
	keep := f.schema(t, "Order.yaml", ordersYAML)
	gone := f.schema(t, "User.yaml", "type: object\n")

	r := f.runner(Options{})
	items, err := r.scan(f.layout.SchemaRoot(), schema.KindSchema)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NoError(t, os.Remove(gone))

	report := r.newReport()
	r.run(context.Background(), report, items, map[string]ledger.Record{})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, Created, report.Outcomes[0].Status)
	assert.Equal(t, Skipped, report.Outcomes[1].Status)
	assert.Equal(t, []string{"orders"}, f.gw.calls)
	assert.FileExists(t, keep)
}

func TestBatchDispatchesConcurrently(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"A", "B", "C", "D"} {
		f.schema(t, name+".yaml", "type: object\n")
	}
	f.gw.barrier = 4

	report, err := f.runner(Options{Concurrency: 4}).MigrateAllSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(Created), "all four calls must be in flight together: %+v", report.Outcomes)
}

func TestBatchKeepsEnumerationOrder(t *testing.T) {
	f := newFixture(t)
	names := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}
	for i, name := range names {
		f.schema(t, name+".yaml", "type: object\n")
		// Earlier files finish last.
		f.gw.delay[paths.CollectionName(name)] = time.Duration(len(names)-i) * 10 * time.Millisecond
	}

	report, err := f.runner(Options{Concurrency: 5}).MigrateAllSchemas(context.Background())
	require.NoError(t, err)

	var got []string
	for _, o := range report.Outcomes {
		got = append(got, o.Collection)
	}
	// The walk is lexical.
	assert.Equal(t, []string{"alphas", "betas", "deltas", "epsilons", "gammas"}, got)
}

func TestAlreadyExistsIsBenign(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "orders.yaml", ordersYAML)
	f.gw.created["orders"] = true

	report, err := f.runner(Options{}).MigrateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, AlreadyExists, report.Outcomes[0].Status)
	assert.False(t, report.Failed())
	assert.Contains(t, f.out.String(), "Exists: orders")

	applied, _ := f.ledger.Applied(context.Background())
	assert.Equal(t, ledger.StatusExists, applied["app/schemas/orders.yaml"].Status)
	assert.Empty(t, applied["app/schemas/orders.yaml"].Error)
}

func TestFailuresAreAggregated(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "Order.yaml", ordersYAML)
	f.schema(t, "User.yaml", "type: object\n")
	f.schema(t, "Broken.yaml", "options: [1, 2]\n")
	f.gw.fail["orders"] = errors.New("connection reset")

	report, err := f.runner(Options{}).MigrateAllSchemas(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	assert.True(t, report.Failed())
	assert.Equal(t, 2, report.Count(Failed))
	assert.Equal(t, 1, report.Count(Created))
	assert.Equal(t, map[string]int{"failed": 2, "created": 1}, report.Counts())

	failures := report.Failures()
	assert.Equal(t, "app/schemas/Broken.yaml", failures[0].File)
	assert.Error(t, failures[0].Err)
	assert.EqualError(t, failures[1].Err, "connection reset")
	assert.Contains(t, f.out.String(), "Failed: app/schemas/Order.yaml: connection reset")

	hist, err := f.ledger.History(context.Background(), ledger.Filter{Status: ledger.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	logs, _ := f.ledger.Logs(context.Background(), 1)
	require.Len(t, logs, 1)
	assert.Equal(t, ledger.LevelError, logs[0].Level, "run summary is an error when anything failed")
}

func TestLedgerSkipsAppliedFiles(t *testing.T) {
	f := newFixture(t)
	path := f.schema(t, "orders.yaml", ordersYAML)
	ctx := context.Background()

	_, err := f.runner(Options{}).MigrateAll(ctx)
	require.NoError(t, err)

	report, err := f.runner(Options{}).MigrateAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, Skipped, report.Outcomes[0].Status)
	assert.Equal(t, "already applied", report.Outcomes[0].Reason)
	assert.Equal(t, 1, f.gw.callCount())

	report, err = f.runner(Options{Force: true}).MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, report.Outcomes[0].Status)
	assert.Equal(t, 2, f.gw.callCount())

	// A changed file is attempted again.
	writeDef(t, path, "name: orders\noptions: {capped: true, size: 1024}\ntype: object\n")
	report, err = f.runner(Options{}).MigrateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, report.Outcomes[0].Status)
	assert.Equal(t, 3, f.gw.callCount())
}

func TestMigrateAllDoesNotDeduplicate(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "Order.yaml", ordersYAML)
	f.migration(t, "Order.yaml", ordersYAML)

	report, err := f.runner(Options{}).MigrateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, Created, report.Outcomes[0].Status)
	assert.Equal(t, schema.KindSchema, report.Outcomes[0].Kind)
	assert.Equal(t, AlreadyExists, report.Outcomes[1].Status)
	assert.Equal(t, schema.KindMigration, report.Outcomes[1].Kind)
}

func TestMigrateAllWithoutRoots(t *testing.T) {
	f := newFixture(t)
	report, err := f.runner(Options{}).MigrateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, f.gw.callCount())
}

func TestMigrateNamed(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "shop/Order.yaml", ordersYAML)
	f.migration(t, "shop/Order.yaml", ordersYAML)
	f.schema(t, "User.yaml", "type: object\n")

	report, err := f.runner(Options{}).MigrateNamed(context.Background(), "--schema=shop/order")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "app/schemas/shop/Order.yaml", report.Outcomes[0].File)
	assert.Equal(t, "database/migrations/shop/Order.yaml", report.Outcomes[1].File)
	assert.Equal(t, []string{"orders", "orders"}, f.gw.calls)

	report, err = f.runner(Options{}).MigrateNamed(context.Background(), "--schema=Invoice")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, Skipped, report.Outcomes[0].Status)

	_, err = f.runner(Options{}).MigrateNamed(context.Background(), "--schema=")
	assert.Error(t, err)
}

func TestCancelledContextStopsDispatch(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "A.yaml", "type: object\n")
	f.schema(t, "B.yaml", "type: object\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(Skipped))
	assert.Zero(t, f.gw.callCount())
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "Order.yaml", ordersYAML)
	f.schema(t, "User.yaml", "type: object\n")
	f.schema(t, "Broken.yaml", "type: banana\n")
	f.gw.created["users"] = true

	plan, err := f.runner(Options{}).Preview(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, ActionInvalid, plan[0].Action)
	assert.ErrorIs(t, plan[0].Err, schema.ErrInvalidType)
	assert.Equal(t, ActionCreate, plan[1].Action)
	assert.Equal(t, "orders", plan[1].Collection)
	assert.Equal(t, ActionExists, plan[2].Action)
	assert.Zero(t, f.gw.callCount(), "preview never creates")

	plan, err = f.runner(Options{}).Preview(context.Background(), "--schema=Invoice")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionMissing, plan[0].Action)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.schema(t, "Order.yaml", ordersYAML)
	f.schema(t, "User.yaml", "type: object\n")
	f.schema(t, "Audit.yaml", "type: object\n")
	f.gw.fail["audits"] = errors.New("boom")

	_, err := f.runner(Options{}).MigrateAll(ctx)
	require.NoError(t, err)

	f.schema(t, "Invoice.yaml", "type: object\n")
	writeDef(t, order, ordersYAML+"# edited\n")
	f.ledger.Record(ctx, ledger.Record{File: "app/schemas/Gone.yaml", Collection: "gones", Status: ledger.StatusCreated})

	st, err := f.runner(Options{}).Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Applied, 1)
	assert.Equal(t, "users", st.Applied[0].Collection)
	require.Len(t, st.Changed, 1)
	assert.Equal(t, "orders", st.Changed[0].Collection)
	require.Len(t, st.Failed, 1)
	assert.Equal(t, "boom", st.Failed[0].Error)
	assert.Equal(t, []string{"app/schemas/Invoice.yaml"}, st.Pending)
	require.Len(t, st.Orphaned, 1)
	assert.Equal(t, "gones", st.Orphaned[0].Collection)
}

func TestRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.schema(t, "A.yaml", "type: object\n")
	f.schema(t, "B.yaml", "type: object\n")
	f.schema(t, "C.yaml", "type: object\n")
	f.gw.created["cs"] = true

	_, err := f.runner(Options{Concurrency: 1}).MigrateAllSchemas(ctx)
	require.NoError(t, err)

	r := f.runner(Options{})
	done, err := r.Rollback(ctx, 1)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "bs", done[0].Collection, "newest created entry; C only found an existing collection")
	assert.Equal(t, []string{"bs"}, f.gw.dropped)
	assert.Contains(t, f.out.String(), "Dropped: bs")
	assert.Contains(t, f.pub.topics, events.TopicCollectionDropped)

	done, err = r.Rollback(ctx, 5)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, []string{"bs", "as"}, f.gw.dropped)

	applied, _ := f.ledger.Applied(ctx)
	assert.Len(t, applied, 1, "the exists entry stays")

	_, err = r.Rollback(ctx, 0)
	assert.Error(t, err)
}

func TestRollbackStopsOnDropError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.schema(t, "A.yaml", "type: object\n")
	_, err := f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	f.gw.fail["drop:as"] = errors.New("not authorized")

	done, err := f.runner(Options{}).Rollback(ctx, 1)
	assert.Error(t, err)
	assert.Empty(t, done)
	applied, _ := f.ledger.Applied(ctx)
	assert.Len(t, applied, 1, "record kept when the drop fails")
}

func TestNewDefaults(t *testing.T) {
	r := New(newFakeGateway(), paths.DefaultLayout(t.TempDir()), Options{})
	assert.Equal(t, DefaultConcurrency, r.concurrency)
	assert.NotEmpty(t, r.user)
	assert.IsType(t, ledger.Noop{}, r.ledger)
}

func TestReapplyKeepsCreatedEntryForRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.schema(t, "A.yaml", "type: object\n")
	const file = "app/schemas/A.yaml"

	report, err := f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	require.Equal(t, Created, report.Outcomes[0].Status)
	applied, _ := f.ledger.Applied(ctx)
	firstChecksum := applied[file].Checksum

	writeDef(t, path, "type: array\n")
	report, err = f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	require.Equal(t, AlreadyExists, report.Outcomes[0].Status)

	applied, _ = f.ledger.Applied(ctx)
	rec := applied[file]
	assert.Equal(t, ledger.StatusCreated, rec.Status)
	assert.Equal(t, "test.as", rec.Namespace)
	assert.NotEqual(t, firstChecksum, rec.Checksum)
	assert.Equal(t, report.RunID, rec.RunID)

	// A failed re-apply keeps the entry and the checksum that was applied.
	writeDef(t, path, "type: string\n")
	f.gw.fail["as"] = errors.New("server unavailable")
	report, err = f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	require.Equal(t, Failed, report.Outcomes[0].Status)
	delete(f.gw.fail, "as")

	applied, _ = f.ledger.Applied(ctx)
	rec = applied[file]
	assert.Equal(t, ledger.StatusCreated, rec.Status)
	assert.Equal(t, "server unavailable", rec.Error)

	st, err := f.runner(Options{}).Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Changed, 1)
	assert.Equal(t, file, st.Changed[0].File)

	done, err := f.runner(Options{}).Rollback(ctx, 1)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, []string{"as"}, f.gw.dropped)
	assert.False(t, f.gw.created["as"])
}

func TestReapplyOfExistsEntryStaysExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.schema(t, "B.yaml", "type: object\n")
	f.gw.created["bs"] = true

	_, err := f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)
	writeDef(t, path, "type: array\n")
	_, err = f.runner(Options{}).MigrateAllSchemas(ctx)
	require.NoError(t, err)

	applied, _ := f.ledger.Applied(ctx)
	assert.Equal(t, ledger.StatusExists, applied["app/schemas/B.yaml"].Status)

	done, err := f.runner(Options{}).Rollback(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Empty(t, f.gw.dropped)
}

func TestMigrateAllMigrations(t *testing.T) {
	f := newFixture(t)
	f.schema(t, "Order.yaml", ordersYAML)
	f.migration(t, "audit/Event.yaml", "type: timestamp\n")
	f.migration(t, "Invoice.yaml", "type: object\n")

	report, err := f.runner(Options{Concurrency: 1}).MigrateAllMigrations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"invoices", "events"}, f.gw.calls, "schema root untouched, lexical walk order")
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "database/migrations/Invoice.yaml", report.Outcomes[0].File)
	assert.Equal(t, "database/migrations/audit/Event.yaml", report.Outcomes[1].File)
	assert.Equal(t, schema.KindMigration, report.Outcomes[1].Kind)
	assert.Equal(t, 2, report.Count(Created))
}
