package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dawson0919/texasporker-sub000/card"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "poker_local.db"

// SQLite 单文件本地存储
type SQLite struct {
	db *sql.DB
}

func localDatabasePathFromEnv() (string, error) {
	if v := strings.TrimSpace(os.Getenv("STORAGE_SQLITE_PATH")); v != "" {
		return v, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve local db dir: %w", err)
	}
	return filepath.Join(dir, "texasporker", defaultLocalDBName), nil
}

func NewSQLiteFromEnv() (*SQLite, error) {
	dbPath, err := localDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLite(dbPath)
}

func NewSQLite(dbPath string) (*SQLite, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS poker_tables (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL DEFAULT 'open',
    fill_deadline_ms INTEGER,
    hand_count    INTEGER NOT NULL DEFAULT 0,
    version       INTEGER NOT NULL DEFAULT 1,
    game_state    TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS table_seats (
    table_id      TEXT NOT NULL,
    seat_index    INTEGER NOT NULL,
    player_type   TEXT NOT NULL,
    player_id     TEXT NOT NULL,
    display_name  TEXT NOT NULL,
    avatar_url    TEXT NOT NULL DEFAULT '',
    balance       INTEGER NOT NULL,
    hole_cards    TEXT NOT NULL DEFAULT '',
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (table_id, seat_index)
)`,
		`CREATE INDEX IF NOT EXISTS idx_poker_tables_status ON poker_tables (status)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

func (s *SQLite) CreateTable(ctx context.Context, row *TableRow) error {
	state, err := encodeState(row.State)
	if err != nil {
		return err
	}
	if row.Version == 0 {
		row.Version = 1
	}
	var deadline any
	if row.FillDeadline != nil {
		deadline = row.FillDeadline.UTC().UnixMilli()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO poker_tables (id, status, fill_deadline_ms, hand_count, version, game_state, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Status, deadline, row.HandCount, row.Version, state, nowMs())
	return err
}

func scanTable(scan func(dest ...any) error) (*TableRow, error) {
	var row TableRow
	var deadline sql.NullInt64
	var state string
	if err := scan(&row.ID, &row.Status, &deadline, &row.HandCount, &row.Version, &state); err != nil {
		return nil, err
	}
	if deadline.Valid {
		t := time.UnixMilli(deadline.Int64).UTC()
		row.FillDeadline = &t
	}
	st, err := decodeState(state)
	if err != nil {
		return nil, err
	}
	row.State = st
	return &row, nil
}

const tableColumns = `id, status, fill_deadline_ms, hand_count, version, game_state`

func (s *SQLite) GetTable(ctx context.Context, id string) (*TableRow, error) {
	r := s.db.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM poker_tables WHERE id = ?`, id)
	row, err := scanTable(r.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return row, err
}

func (s *SQLite) SaveTable(ctx context.Context, row *TableRow) error {
	state, err := encodeState(row.State)
	if err != nil {
		return err
	}
	var deadline any
	if row.FillDeadline != nil {
		deadline = row.FillDeadline.UTC().UnixMilli()
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE poker_tables
SET status = ?, fill_deadline_ms = ?, hand_count = ?, version = version + 1,
    game_state = ?, updated_at_ms = ?
WHERE id = ? AND version = ?`,
		row.Status, deadline, row.HandCount, state, nowMs(), row.ID, row.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	row.Version++
	return nil
}

func (s *SQLite) ListOpenTables(ctx context.Context) ([]*TableRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM poker_tables WHERE status = ? ORDER BY id`, TableOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*TableRow{}
	for rows.Next() {
		row, err := scanTable(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLite) CloseTable(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE poker_tables SET status = ?, updated_at_ms = ? WHERE id = ?`,
		TableClosed, nowMs(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const seatColumns = `table_id, seat_index, player_type, player_id, display_name, avatar_url, balance, hole_cards`

func scanSeat(scan func(dest ...any) error) (*SeatRow, error) {
	var seat SeatRow
	var holeRaw string
	if err := scan(&seat.TableID, &seat.SeatIndex, &seat.PlayerType, &seat.PlayerID,
		&seat.DisplayName, &seat.AvatarURL, &seat.Balance, &holeRaw); err != nil {
		return nil, err
	}
	hole, err := decodeCards(holeRaw)
	if err != nil {
		return nil, err
	}
	seat.HoleCards = hole
	return &seat, nil
}

func (s *SQLite) ListSeats(ctx context.Context, tableID string) ([]*SeatRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM table_seats WHERE table_id = ? ORDER BY seat_index`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*SeatRow{}
	for rows.Next() {
		seat, err := scanSeat(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertSeat(ctx context.Context, seat *SeatRow) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO table_seats (table_id, seat_index, player_type, player_id, display_name, avatar_url, balance, hole_cards, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (table_id, seat_index) DO UPDATE SET
    player_type = excluded.player_type,
    player_id = excluded.player_id,
    display_name = excluded.display_name,
    avatar_url = excluded.avatar_url,
    balance = excluded.balance,
    hole_cards = excluded.hole_cards,
    updated_at_ms = excluded.updated_at_ms`,
		seat.TableID, seat.SeatIndex, seat.PlayerType, seat.PlayerID,
		seat.DisplayName, seat.AvatarURL, seat.Balance, encodeCards(seat.HoleCards), nowMs())
	return err
}

func (s *SQLite) DeleteSeat(ctx context.Context, tableID string, seatIndex int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM table_seats WHERE table_id = ? AND seat_index = ?`, tableID, seatIndex)
	return err
}

func (s *SQLite) DeleteSeats(ctx context.Context, tableID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM table_seats WHERE table_id = ?`, tableID)
	return err
}

func (s *SQLite) SetHoleCards(ctx context.Context, tableID string, hole map[int][]card.Card) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`UPDATE table_seats SET hole_cards = '', updated_at_ms = ? WHERE table_id = ?`,
		nowMs(), tableID); err != nil {
		return err
	}
	for idx, cs := range hole {
		if _, err := tx.ExecContext(ctx,
			`UPDATE table_seats SET hole_cards = ?, updated_at_ms = ? WHERE table_id = ? AND seat_index = ?`,
			encodeCards(cs), nowMs(), tableID, idx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) GetHoleCards(ctx context.Context, tableID string) (map[int][]card.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_index, hole_cards FROM table_seats WHERE table_id = ? AND hole_cards <> ''`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int][]card.Card{}
	for rows.Next() {
		var idx int
		var raw string
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, err
		}
		cs, err := decodeCards(raw)
		if err != nil {
			return nil, err
		}
		out[idx] = cs
	}
	return out, rows.Err()
}

func (s *SQLite) CommitBalances(ctx context.Context, tableID string, balances map[int]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for idx, bal := range balances {
		if _, err := tx.ExecContext(ctx,
			`UPDATE table_seats SET balance = ?, updated_at_ms = ? WHERE table_id = ? AND seat_index = ?`,
			bal, nowMs(), tableID, idx); err != nil {
			return err
		}
	}
	return tx.Commit()
}
