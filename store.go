package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	ErrPlaylistExists   = errors.New("playlist already exists")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrSystemPlaylist   = errors.New("system playlist cannot be deleted")
)

var (
	beginTx  = func(db *sql.DB) (*sql.Tx, error) { return db.Begin() }
	commitTx = func(tx *sql.Tx) error { return tx.Commit() }
	nowUTC   = func() time.Time { return time.Now().UTC() }
)

// Store persists seen markers, the duration cache and playlists in sqlite.
// Read methods log failures and return empty results; write methods
// return the error to the caller.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// sqlite: one writer
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, log: logger}, nil
}

func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS seen_videos (
			video_id TEXT PRIMARY KEY,
			title TEXT,
			seen_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS video_metadata (
			video_id TEXT PRIMARY KEY,
			duration TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			is_system_list INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS videos (
			video_id TEXT PRIMARY KEY,
			title TEXT,
			channel TEXT,
			url TEXT,
			duration TEXT,
			is_shorts INTEGER NOT NULL DEFAULT 0,
			published_at INTEGER,
			first_seen INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			playlist_id INTEGER NOT NULL,
			video_id TEXT NOT NULL,
			added_at INTEGER NOT NULL,
			PRIMARY KEY (playlist_id, video_id),
			FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
			FOREIGN KEY (video_id) REFERENCES videos(video_id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR IGNORE INTO playlists (name, created_at, is_system_list) VALUES (?, ?, 1)`,
		WatchLaterPlaylist, timeToUnix(nowUTC()))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) MarkSeen(videoID, title string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO seen_videos (video_id, title, seen_at) VALUES (?, ?, ?)`,
		videoID, title, timeToUnix(nowUTC()))
	if err != nil {
		s.log.Error().Err(err).Str("video_id", videoID).Msg("mark seen")
	}
	return err
}

// MarkAllSeen inserts every video in one transaction so the batch either
// lands or fails as a unit.
func (s *Store) MarkAllSeen(videos []Video) error {
	if len(videos) == 0 {
		return nil
	}
	tx, err := beginTx(s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("mark all seen: begin")
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO seen_videos (video_id, title, seen_at) VALUES (?, ?, ?)`)
	if err != nil {
		s.log.Error().Err(err).Msg("mark all seen: prepare")
		return err
	}
	defer stmt.Close()
	now := timeToUnix(nowUTC())
	for _, video := range videos {
		if _, err := stmt.Exec(video.ID, video.Title, now); err != nil {
			s.log.Error().Err(err).Int("batch", len(videos)).Msg("mark all seen")
			return err
		}
	}
	if err := commitTx(tx); err != nil {
		s.log.Error().Err(err).Msg("mark all seen: commit")
		return err
	}
	return nil
}

func (s *Store) SeenIDs() map[string]bool {
	rows, err := s.db.Query(`SELECT video_id FROM seen_videos`)
	if err != nil {
		s.log.Error().Err(err).Msg("load seen ids")
		return map[string]bool{}
	}
	defer rows.Close()
	seen := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.log.Error().Err(err).Msg("scan seen id")
			return map[string]bool{}
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("load seen ids")
		return map[string]bool{}
	}
	return seen
}

func (s *Store) SeenRecords() []SeenRecord {
	rows, err := s.db.Query(`SELECT video_id, COALESCE(title, ''), seen_at FROM seen_videos ORDER BY seen_at, video_id`)
	if err != nil {
		s.log.Error().Err(err).Msg("load seen records")
		return nil
	}
	defer rows.Close()
	records := []SeenRecord{}
	for rows.Next() {
		var record SeenRecord
		var seenAt int64
		if err := rows.Scan(&record.VideoID, &record.Title, &seenAt); err != nil {
			s.log.Error().Err(err).Msg("scan seen record")
			return nil
		}
		record.SeenAt = unixToTime(seenAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("load seen records")
		return nil
	}
	return records
}

func (s *Store) CachedDurations() map[string]string {
	rows, err := s.db.Query(`SELECT video_id, duration FROM video_metadata`)
	if err != nil {
		s.log.Error().Err(err).Msg("load duration cache")
		return map[string]string{}
	}
	defer rows.Close()
	durations := map[string]string{}
	for rows.Next() {
		var id, duration string
		if err := rows.Scan(&id, &duration); err != nil {
			s.log.Error().Err(err).Msg("scan duration")
			return map[string]string{}
		}
		durations[id] = duration
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("load duration cache")
		return map[string]string{}
	}
	return durations
}

func (s *Store) SaveDuration(videoID, duration string) error {
	if duration == "" || duration == UnknownDuration {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO video_metadata (video_id, duration) VALUES (?, ?)
		ON CONFLICT(video_id) DO UPDATE SET duration = excluded.duration`, videoID, duration)
	if err != nil {
		s.log.Error().Err(err).Str("video_id", videoID).Msg("save duration")
	}
	return err
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func unixToTime(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0).UTC()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
