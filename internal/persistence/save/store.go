package save

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("save: slot not found")

const schema = `
CREATE TABLE IF NOT EXISTS save_slots (
	slot_name    TEXT PRIMARY KEY,
	version      INTEGER NOT NULL,
	timestamp    INTEGER NOT NULL,
	week         INTEGER NOT NULL,
	player_names TEXT NOT NULL,
	game_state   TEXT NOT NULL
);
`

// Store is a SQLite-backed collection of save slots.
type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping save db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate save db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put writes a record, replacing any existing slot with the same name.
func (s *Store) Put(rec Record) error {
	names, err := json.Marshal(rec.PlayerNames)
	if err != nil {
		return err
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO save_slots (slot_name, version, timestamp, week, player_names, game_state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot_name) DO UPDATE SET
			version = excluded.version,
			timestamp = excluded.timestamp,
			week = excluded.week,
			player_names = excluded.player_names,
			game_state = excluded.game_state`,
		rec.SlotName, rec.Version, rec.Timestamp, rec.Week, string(names), string(rec.GameState))
	if err != nil {
		return fmt.Errorf("write slot %q: %w", rec.SlotName, err)
	}
	return tx.Commit()
}

type slotRow struct {
	SlotName    string `db:"slot_name"`
	Version     int    `db:"version"`
	Timestamp   int64  `db:"timestamp"`
	Week        int    `db:"week"`
	PlayerNames string `db:"player_names"`
	GameState   string `db:"game_state"`
}

func (r slotRow) record() (Record, error) {
	rec := Record{
		Version:   r.Version,
		Timestamp: r.Timestamp,
		SlotName:  r.SlotName,
		Week:      r.Week,
		GameState: json.RawMessage(r.GameState),
	}
	if err := json.Unmarshal([]byte(r.PlayerNames), &rec.PlayerNames); err != nil {
		return rec, fmt.Errorf("slot %q: bad player names: %w", r.SlotName, err)
	}
	return rec, nil
}

// Get loads a slot and migrates it to the current version. A slot that
// cannot be read or migrated is left untouched on disk and reported as an
// error.
func (s *Store) Get(slot string) (Record, error) {
	var row slotRow
	err := s.db.Get(&row, `SELECT * FROM save_slots WHERE slot_name = ?`, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("read slot %q: %w", slot, err)
	}
	rec, err := row.record()
	if err != nil {
		return Record{}, err
	}
	rec, err = Migrate(rec)
	if err != nil {
		return Record{}, fmt.Errorf("slot %q: %w", slot, err)
	}
	return rec, nil
}

// SlotInfo is the listing view of a slot, without the state payload.
type SlotInfo struct {
	SlotName    string   `json:"slot_name"`
	Version     int      `json:"version"`
	Timestamp   int64    `json:"timestamp"`
	Week        int      `json:"week"`
	PlayerNames []string `json:"player_names"`
}

// List returns all slots, most recently written first.
func (s *Store) List() ([]SlotInfo, error) {
	var rows []slotRow
	err := s.db.Select(&rows, `
		SELECT slot_name, version, timestamp, week, player_names, '' AS game_state
		FROM save_slots ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	infos := make([]SlotInfo, 0, len(rows))
	for _, r := range rows {
		var names []string
		if err := json.Unmarshal([]byte(r.PlayerNames), &names); err != nil {
			names = []string{strings.TrimSpace(r.PlayerNames)}
		}
		infos = append(infos, SlotInfo{
			SlotName:    r.SlotName,
			Version:     r.Version,
			Timestamp:   r.Timestamp,
			Week:        r.Week,
			PlayerNames: names,
		})
	}
	return infos, nil
}

func (s *Store) Delete(slot string) error {
	res, err := s.db.Exec(`DELETE FROM save_slots WHERE slot_name = ?`, slot)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
