// Package journal persists bridge incidents and per-session summaries to
// SQLite. Incidents arrive on the bus from any thread and are only buffered;
// the host thread writes them out with Flush.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corrreia/hostbridge/internal/bridge"
	"github.com/corrreia/hostbridge/internal/ipc"
	"github.com/corrreia/hostbridge/internal/shared"
)

// MemoryPath opens a private in-memory journal
const MemoryPath = ":memory:"

// maxPending bounds the buffer between flushes; the oldest entries go first
const maxPending = 4096

const subscriberName = "journal"

// Incident is one bridge incident as stored
type Incident struct {
	ID      int64
	At      time.Time
	Session string
	Topic   string
	Channel string
	Detail  string
}

// Session is the summary written when a bridge session ends
type Session struct {
	ID       string
	Started  time.Time
	Ended    time.Time
	Stats    bridge.Stats
	Discards int
}

// Journal buffers bus incidents and writes them to SQLite
type Journal struct {
	db *sql.DB

	mu       sync.Mutex
	pending  []Incident
	sessions []Session
	overflow int
	subs     *ipc.Bus
}

// Open opens (or creates) the journal database at path and applies any
// pending migrations.
func Open(path string) (*Journal, error) {
	dsn := path
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("journal: create data dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping db: %w", err)
	}
	if err := migrate(db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Attach subscribes the journal to every topic on bus
func (j *Journal) Attach(bus *ipc.Bus) {
	if bus == nil {
		return
	}
	j.mu.Lock()
	j.subs = bus
	j.mu.Unlock()
	bus.SubscribeFor(subscriberName, ipc.AllTopics, j.record)
}

// Detach removes the journal's subscriptions
func (j *Journal) Detach() {
	j.mu.Lock()
	bus := j.subs
	j.subs = nil
	j.mu.Unlock()

	if bus != nil {
		bus.UnsubscribeAll(subscriberName)
	}
}

// record runs on whichever thread published. It never touches the database.
func (j *Journal) record(data map[string]any) {
	topic := str(data["topic"])

	if topic == bridge.TopicSession && str(data["detail"]) == "end" {
		s := Session{ID: str(data["session"]), Ended: time.Now()}
		s.Started, _ = data["started"].(time.Time)
		s.Stats, _ = data["stats"].(bridge.Stats)
		s.Discards, _ = data["discards"].(int)

		j.mu.Lock()
		j.sessions = append(j.sessions, s)
		j.mu.Unlock()
	}

	in := Incident{
		At:      time.Now(),
		Session: str(data["session"]),
		Topic:   topic,
		Channel: str(data["channel"]),
		Detail:  str(data["detail"]),
	}

	j.mu.Lock()
	if len(j.pending) >= maxPending {
		j.pending = j.pending[1:]
		j.overflow++
	}
	j.pending = append(j.pending, in)
	j.mu.Unlock()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Pending returns the number of buffered incidents
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Flush writes buffered incidents and session summaries in one transaction
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	pending, sessions, overflow := j.pending, j.sessions, j.overflow
	j.pending, j.sessions, j.overflow = nil, nil, 0
	j.mu.Unlock()

	if len(pending) == 0 && len(sessions) == 0 {
		return nil
	}
	if overflow > 0 {
		shared.LogWarning("Journal", "%d incidents lost to buffer overflow", overflow)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	for _, in := range pending {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO incidents (at, session, topic, channel, detail) VALUES (?, ?, ?, ?, ?)`,
			in.At.UnixMilli(), in.Session, in.Topic, in.Channel, in.Detail)
		if err != nil {
			return fmt.Errorf("journal: insert incident: %w", err)
		}
	}

	for _, s := range sessions {
		stats, err := json.Marshal(s.Stats)
		if err != nil {
			return fmt.Errorf("journal: encode stats: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO sessions (id, started_at, ended_at, stats, discards) VALUES (?, ?, ?, ?, ?)`,
			s.ID, s.Started.UnixMilli(), s.Ended.UnixMilli(), string(stats), s.Discards)
		if err != nil {
			return fmt.Errorf("journal: insert session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}

	shared.DebugLog("journal flushed %d incidents, %d sessions", len(pending), len(sessions))
	return nil
}

// Close detaches from the bus, flushes what is buffered and closes the database
func (j *Journal) Close() error {
	j.Detach()

	err := j.Flush(context.Background())
	if cerr := j.db.Close(); err == nil {
		err = cerr
	}
	return err
}
