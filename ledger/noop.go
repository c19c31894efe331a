package ledger

import "context"

// Noop discards everything; used when the ledger is turned off.
type Noop struct{}

var _ Ledger = Noop{}

func (Noop) Ensure(ctx context.Context) error { return nil }
func (Noop) Applied(ctx context.Context) (map[string]Record, error) {
	return map[string]Record{}, nil
}
func (Noop) Record(ctx context.Context, rec Record) error { return nil }
func (Noop) Get(ctx context.Context, id string) (Record, error) {
	return Record{}, ErrNotFound
}
func (Noop) Remove(ctx context.Context, file string) error { return nil }
func (Noop) History(ctx context.Context, filter Filter) ([]Record, error) {
	return nil, nil
}
func (Noop) Count(ctx context.Context) (int, error)               { return 0, nil }
func (Noop) Log(ctx context.Context, entry Entry) error           { return nil }
func (Noop) Logs(ctx context.Context, limit int) ([]Entry, error) { return nil, nil }
func (Noop) Close(ctx context.Context) error                      { return nil }
