// Package export dumps the migration ledger as JSONL for audit trails.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ridoystarlord/mongrato/ledger"
)

// FormatVersion is written in the header line.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int       `json:"record_count"`
	LogCount    int       `json:"log_count"`
}

// line wraps a single JSONL line with a type discriminator.
type line struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every ledger record, oldest first, followed by the
// activity log, oldest first.
func ExportJSONL(ctx context.Context, l ledger.Ledger, w io.Writer) error {
	records, err := l.History(ctx, ledger.Filter{})
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].AppliedAt.Equal(records[j].AppliedAt) {
			return records[i].AppliedAt.Before(records[j].AppliedAt)
		}
		return records[i].File < records[j].File
	})

	logs, err := l.Logs(ctx, 0)
	if err != nil {
		return fmt.Errorf("list logs: %w", err)
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     FormatVersion,
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		RecordCount: len(records),
		LogCount:    len(logs),
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := enc.Encode(line{Type: "migration", Data: r}); err != nil {
			return fmt.Errorf("write record %s: %w", r.File, err)
		}
	}
	for _, e := range logs {
		if err := enc.Encode(line{Type: "log", Data: e}); err != nil {
			return fmt.Errorf("write log entry: %w", err)
		}
	}
	return nil
}
