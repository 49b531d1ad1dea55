package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides data persistence
type Store struct {
	db *sql.DB
}

// DownloadRecord is one row of download history
type DownloadRecord struct {
	ID        int64
	MangaID   string
	Title     string
	Requester string
	Status    string // "ok" or "failed"
	Detail    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Download statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// New creates a new storage instance
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			manga_id TEXT NOT NULL,
			title TEXT,
			requester TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			duration_ms INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_manga_id ON downloads(manga_id);`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// RecordDownload stores the outcome of one download attempt
func (s *Store) RecordDownload(mangaID, title, requester, status, detail string, duration time.Duration) error {
	_, err := s.db.Exec(
		"INSERT INTO downloads (manga_id, title, requester, status, detail, duration_ms) VALUES (?, ?, ?, ?, ?, ?)",
		mangaID, title, requester, status, detail, duration.Milliseconds(),
	)
	return err
}

// RecentDownloads returns the most recent download attempts, newest first
func (s *Store) RecentDownloads(limit int) ([]DownloadRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, manga_id, title, requester, status, detail, duration_ms, created_at FROM downloads ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DownloadRecord
	for rows.Next() {
		var r DownloadRecord
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.MangaID, &r.Title, &r.Requester, &r.Status, &r.Detail, &durationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}

	return records, rows.Err()
}

// CountDownloads returns total and failed attempt counts
func (s *Store) CountDownloads() (total int64, failed int64, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM downloads").Scan(&total); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM downloads WHERE status = ?", StatusFailed).Scan(&failed); err != nil {
		return 0, 0, err
	}
	return total, failed, nil
}
