package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/lotterydesk/internal/models"
	"github.com/abrezinsky/lotterydesk/pkg/lotteryapi"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New opens the SQLite journal at dbPath and applies pending migrations
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection; :memory: requires it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate applies the embedded migrations. The migrate instance is not closed
// because closing it would close r.db.
func (r *Repository) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(r.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// ==================== Chat Methods ====================

// SaveChatMessage journals a chat message; saving the same ID twice is a no-op
func (r *Repository) SaveChatMessage(ctx context.Context, msg models.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_messages (id, type, sender, content, command_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Type, msg.Sender, msg.Content, nullString(msg.CommandType), msg.Timestamp.UTC())
	return err
}

// RecentChatMessages returns up to limit of the newest messages, oldest first
func (r *Repository) RecentChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, sender, content, command_type, created_at
		FROM chat_messages
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var commandType sql.NullString
		if err := rows.Scan(&m.ID, &m.Type, &m.Sender, &m.Content, &commandType, &m.Timestamp); err != nil {
			return nil, err
		}
		m.CommandType = commandType.String
		m.Timestamp = m.Timestamp.Local()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClearChatMessages deletes the chat journal
func (r *Repository) ClearChatMessages(ctx context.Context) error {
	return r.ClearTable(ctx, "chat_messages")
}

// ==================== Draw Result Methods ====================

// SaveDrawResult journals a draw result with its source (draw or push)
func (r *Repository) SaveDrawResult(ctx context.Context, result lotteryapi.DrawResult, source string) error {
	winners := result.Winners
	if winners == nil {
		winners = []lotteryapi.Winner{}
	}
	winnersJSON, err := json.Marshal(winners)
	if err != nil {
		return err
	}

	drawnAt := time.Now()
	if result.DrawTime != nil && !result.DrawTime.IsZero() {
		drawnAt = result.DrawTime.Time
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO draw_results (prize_id, prize_name, prize_level, winners, source, drawn_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.PrizeID, result.PrizeName, result.PrizeLevel, string(winnersJSON), source, drawnAt.UTC())
	return err
}

// ListDrawResults returns up to limit journaled results, newest first.
// A non-positive limit returns all of them.
func (r *Repository) ListDrawResults(ctx context.Context, limit int) ([]models.DrawHistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, prize_id, prize_name, prize_level, winners, source, drawn_at
		FROM draw_results
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.DrawHistoryEntry{}
	for rows.Next() {
		var e models.DrawHistoryEntry
		var prizeName sql.NullString
		var prizeLevel sql.NullInt64
		var winnersJSON string
		if err := rows.Scan(&e.ID, &e.PrizeID, &prizeName, &prizeLevel, &winnersJSON, &e.Source, &e.DrawnAt); err != nil {
			return nil, err
		}
		e.PrizeName = prizeName.String
		e.PrizeLevel = int(prizeLevel.Int64)
		e.DrawnAt = e.DrawnAt.Local()
		if err := json.Unmarshal([]byte(winnersJSON), &e.Winners); err != nil {
			return nil, fmt.Errorf("decode winners for result %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

var validTables = map[string]bool{
	"chat_messages": true,
	"draw_results":  true,
	"settings":      true,
}

// ClearTable clears all data from a whitelisted table
func (r *Repository) ClearTable(ctx context.Context, table string) error {
	if !validTables[table] {
		return ErrInvalidTable
	}

	_, err := r.db.ExecContext(ctx, "DELETE FROM "+table)
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
