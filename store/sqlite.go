package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389-research/specloom/core"
)

const rfc3339 = time.RFC3339Nano

// SpecSummary is one row of the specs listing.
type SpecSummary struct {
	SpecID    string
	Title     string
	OneLiner  string
	Goal      string
	UpdatedAt string
}

// CardRow is one row of a spec's cards listing.
type CardRow struct {
	CardID    string
	SpecID    string
	CardType  string
	Title     string
	Body      *string
	Lane      string
	SortOrder float64
	CreatedBy string
	UpdatedAt string
}

// SqliteIndex is the embedded relational cache of specs and cards described
// in the storage layout as index.db.
type SqliteIndex struct {
	db *sql.DB
}

// OpenSqlite opens (creating if necessary) the index database at path,
// enabling WAL mode and foreign keys, and ensuring the schema exists.
func OpenSqlite(path string) (*SqliteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS specs (
			spec_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			one_liner TEXT NOT NULL,
			goal TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			card_id TEXT PRIMARY KEY,
			spec_id TEXT NOT NULL,
			card_type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT,
			lane TEXT NOT NULL,
			sort_order REAL NOT NULL,
			created_by TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SqliteIndex{db: db}, nil
}

// Close closes the underlying database handle.
func (idx *SqliteIndex) Close() error {
	return idx.db.Close()
}

// UpdateSpec upserts a spec's summary row.
func (idx *SqliteIndex) UpdateSpec(core core.SpecCore) error {
	_, err := idx.db.Exec(`
		INSERT INTO specs (spec_id, title, one_liner, goal, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(spec_id) DO UPDATE SET
			title = excluded.title,
			one_liner = excluded.one_liner,
			goal = excluded.goal,
			updated_at = excluded.updated_at
	`, core.SpecID.String(), core.Title, core.OneLiner, core.Goal, core.UpdatedAt.Format(rfc3339))
	return err
}

// UpdateCard upserts a card row.
func (idx *SqliteIndex) UpdateCard(specID string, card core.Card) error {
	_, err := idx.db.Exec(`
		INSERT INTO cards (card_id, spec_id, card_type, title, body, lane, sort_order, created_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			card_type = excluded.card_type,
			title = excluded.title,
			body = excluded.body,
			lane = excluded.lane,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
	`, card.CardID.String(), specID, card.CardType, card.Title, card.Body, card.Lane, card.Order, card.CreatedBy, card.UpdatedAt.Format(rfc3339))
	return err
}

// DeleteCard removes a card row.
func (idx *SqliteIndex) DeleteCard(cardID string) error {
	_, err := idx.db.Exec(`DELETE FROM cards WHERE card_id = ?`, cardID)
	return err
}

// ListSpecs returns all spec summaries, most recently updated first.
func (idx *SqliteIndex) ListSpecs() ([]SpecSummary, error) {
	rows, err := idx.db.Query(`SELECT spec_id, title, one_liner, goal, updated_at FROM specs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpecSummary
	for rows.Next() {
		var s SpecSummary
		if err := rows.Scan(&s.SpecID, &s.Title, &s.OneLiner, &s.Goal, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListCards returns all card rows for specID, ordered by sort_order.
func (idx *SqliteIndex) ListCards(specID string) ([]CardRow, error) {
	rows, err := idx.db.Query(`
		SELECT card_id, spec_id, card_type, title, body, lane, sort_order, created_by, updated_at
		FROM cards WHERE spec_id = ? ORDER BY sort_order ASC
	`, specID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CardRow
	for rows.Next() {
		var c CardRow
		if err := rows.Scan(&c.CardID, &c.SpecID, &c.CardType, &c.Title, &c.Body, &c.Lane, &c.SortOrder, &c.CreatedBy, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetLastEventID reads the index's last-applied event id. ok is false if the
// index has never been populated.
func (idx *SqliteIndex) GetLastEventID() (id uint64, ok bool, err error) {
	row := idx.db.QueryRow(`SELECT value FROM meta WHERE key = 'last_event_id'`)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	var parsed uint64
	if _, err := fmt.Sscanf(raw, "%d", &parsed); err != nil {
		return 0, false, err
	}
	return parsed, true, nil
}

// SetLastEventID records the index's last-applied event id.
func (idx *SqliteIndex) SetLastEventID(id uint64) error {
	_, err := idx.db.Exec(`
		INSERT INTO meta (key, value) VALUES ('last_event_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fmt.Sprintf("%d", id))
	return err
}

// RebuildFromEvents truncates all tables and replays events from scratch.
func (idx *SqliteIndex) RebuildFromEvents(events []core.Event) error {
	for _, table := range []string{"specs", "cards", "meta"} {
		if _, err := idx.db.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	for _, event := range events {
		if err := idx.ApplyEvent(event); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEvent incrementally folds one event into the index and always
// records the new last-applied event id, even for event kinds that do not
// otherwise touch a table.
func (idx *SqliteIndex) ApplyEvent(event core.Event) error {
	specID := event.SpecID.String()

	switch p := event.Payload.(type) {
	case core.SpecCreatedPayload:
		sc := core.SpecCore{SpecID: event.SpecID, Title: p.Title, OneLiner: p.OneLiner, Goal: p.Goal, UpdatedAt: event.Timestamp}
		if err := idx.UpdateSpec(sc); err != nil {
			return err
		}

	case core.SpecCoreUpdatedPayload:
		if _, err := idx.db.Exec(`
			UPDATE specs SET
				title = COALESCE(?, title),
				one_liner = COALESCE(?, one_liner),
				goal = COALESCE(?, goal),
				updated_at = ?
			WHERE spec_id = ?
		`, p.Title, p.OneLiner, p.Goal, event.Timestamp.Format(rfc3339), specID); err != nil {
			return err
		}

	case core.CardCreatedPayload:
		if err := idx.UpdateCard(specID, p.Card); err != nil {
			return err
		}

	case core.CardUpdatedPayload:
		if err := idx.applyCardUpdated(specID, p, event.Timestamp); err != nil {
			return err
		}

	case core.CardMovedPayload:
		if _, err := idx.db.Exec(`UPDATE cards SET lane = ?, sort_order = ?, updated_at = ? WHERE card_id = ?`,
			p.Lane, p.Order, event.Timestamp.Format(rfc3339), p.CardID.String()); err != nil {
			return err
		}

	case core.CardDeletedPayload:
		if err := idx.DeleteCard(p.CardID.String()); err != nil {
			return err
		}

	case core.UndoAppliedPayload:
		for _, inv := range p.InverseEvents {
			if err := idx.ApplyEvent(core.Event{EventID: event.EventID, SpecID: event.SpecID, Timestamp: event.Timestamp, Payload: inv}); err != nil {
				return err
			}
		}
	}

	return idx.SetLastEventID(event.EventID)
}

func (idx *SqliteIndex) applyCardUpdated(specID string, p core.CardUpdatedPayload, at time.Time) error {
	if p.Title != nil {
		if _, err := idx.db.Exec(`UPDATE cards SET title = ?, updated_at = ? WHERE card_id = ?`, *p.Title, at.Format(rfc3339), p.CardID.String()); err != nil {
			return err
		}
	}
	if p.CardType != nil {
		if _, err := idx.db.Exec(`UPDATE cards SET card_type = ?, updated_at = ? WHERE card_id = ?`, *p.CardType, at.Format(rfc3339), p.CardID.String()); err != nil {
			return err
		}
	}
	if p.Body.Set {
		var body any
		if p.Body.Valid {
			body = p.Body.Value
		}
		if _, err := idx.db.Exec(`UPDATE cards SET body = ?, updated_at = ? WHERE card_id = ?`, body, at.Format(rfc3339), p.CardID.String()); err != nil {
			return err
		}
	}
	return nil
}
