package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Filter narrows an incident query. Zero fields match everything.
type Filter struct {
	Session string
	Topic   string
	Limit   int
}

// where builds the WHERE clause and its arguments
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Session != "" {
		conds = append(conds, "session = ?")
		args = append(args, f.Session)
	}
	if f.Topic != "" {
		conds = append(conds, "topic = ?")
		args = append(args, f.Topic)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Incidents returns stored incidents in insertion order
func (j *Journal) Incidents(ctx context.Context, f Filter) ([]Incident, error) {
	where, args := f.where()
	query := "SELECT id, at, session, topic, channel, detail FROM incidents" + where + " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var in Incident
		var at int64
		if err := rows.Scan(&in.ID, &at, &in.Session, &in.Topic, &in.Channel, &in.Detail); err != nil {
			return nil, fmt.Errorf("journal: scan incident: %w", err)
		}
		in.At = time.UnixMilli(at)
		out = append(out, in)
	}
	return out, rows.Err()
}

// CountByTopic returns the number of stored incidents per topic
func (j *Journal) CountByTopic(ctx context.Context, session string) (map[string]int, error) {
	where, args := Filter{Session: session}.where()
	rows, err := j.db.QueryContext(ctx, "SELECT topic, COUNT(*) FROM incidents"+where+" GROUP BY topic", args...)
	if err != nil {
		return nil, fmt.Errorf("journal: count incidents: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var topic string
		var n int
		if err := rows.Scan(&topic, &n); err != nil {
			return nil, fmt.Errorf("journal: scan count: %w", err)
		}
		counts[topic] = n
	}
	return counts, rows.Err()
}

// Sessions returns every recorded session summary, oldest first
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, started_at, ended_at, stats, discards FROM sessions ORDER BY ended_at, id")
	if err != nil {
		return nil, fmt.Errorf("journal: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LookupSession returns the summary for id, or sql.ErrNoRows
func (j *Journal) LookupSession(ctx context.Context, id string) (Session, error) {
	row := j.db.QueryRowContext(ctx,
		"SELECT id, started_at, ended_at, stats, discards FROM sessions WHERE id = ?", id)
	return scanSession(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var started, ended int64
	var stats string
	if err := row.Scan(&s.ID, &started, &ended, &stats, &s.Discards); err != nil {
		if err == sql.ErrNoRows {
			return s, err
		}
		return s, fmt.Errorf("journal: scan session: %w", err)
	}
	s.Started = time.UnixMilli(started)
	s.Ended = time.UnixMilli(ended)
	if err := json.Unmarshal([]byte(stats), &s.Stats); err != nil {
		return s, fmt.Errorf("journal: decode stats: %w", err)
	}
	return s, nil
}
