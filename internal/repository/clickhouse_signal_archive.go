package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
)

// ClickHouseSignalArchive implements SignalArchive over ClickHouse. One row
// per lifecycle event; the active set itself never lives here.
type ClickHouseSignalArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalArchive creates a ClickHouse-backed signal archive.
func NewClickHouseSignalArchive(db *sql.DB, table string) repository.SignalArchive {
	return &ClickHouseSignalArchive{db: db, table: table}
}

// SchemaStatements returns the idempotent DDL for the archive table.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			ts DateTime64(3),
			symbol LowCardinality(String),
			strike Float64,
			option_type LowCardinality(String),
			event_type LowCardinality(String),
			direction LowCardinality(String),
			confidence Float64,
			reasons String,
			reason String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (symbol, strike, option_type, ts)`, database, table),
	}
}

func (a *ClickHouseSignalArchive) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (a *ClickHouseSignalArchive) Append(ctx context.Context, ev *models.SignalEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, strike, option_type, event_type, direction, confidence, reasons, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", a.table)
	_, err := a.db.ExecContext(ctx, q, eventArgs(ev)...)
	return err
}

func (a *ClickHouseSignalArchive) AppendBatch(ctx context.Context, evs []*models.SignalEvent) error {
	if len(evs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(evs); start += chunkSize {
		end := start + chunkSize
		if end > len(evs) {
			end = len(evs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, ev := range evs[start:end] {
			if ev == nil || ev.Key.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, eventArgs(ev)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, strike, option_type, event_type, direction, confidence, reasons, reason) VALUES %s", a.table, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (a *ClickHouseSignalArchive) History(ctx context.Context, key models.SignalKey, limit int) ([]*models.SignalEvent, error) {
	q := fmt.Sprintf("SELECT ts, event_type, direction, confidence, reasons, reason FROM %s WHERE symbol = ? AND strike = ? AND option_type = ? ORDER BY ts DESC LIMIT ?", a.table)
	rows, err := a.db.QueryContext(ctx, q, key.Symbol, key.Strike, string(key.OptionType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.SignalEvent
	for rows.Next() {
		var (
			ts        time.Time
			eventType string
			direction string
			ev        models.SignalEvent
			reasons   string
		)
		if err := rows.Scan(&ts, &eventType, &direction, &ev.Confidence, &reasons, &ev.Reason); err != nil {
			return nil, err
		}
		ev.Key = key
		ev.Type = models.EventType(eventType)
		ev.Direction = models.Direction(direction)
		ev.Timestamp = ts
		if reasons != "" {
			ev.Reasons = strings.Split(reasons, "; ")
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (a *ClickHouseSignalArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseSignalArchive) Close() error {
	return nil // Managed by pkg
}

func eventArgs(ev *models.SignalEvent) []interface{} {
	return []interface{}{
		ev.Timestamp,
		ev.Key.Symbol,
		ev.Key.Strike,
		string(ev.Key.OptionType),
		string(ev.Type),
		string(ev.Direction),
		ev.Confidence,
		strings.Join(ev.Reasons, "; "),
		ev.Reason,
	}
}
