package main

import (
	"database/sql"
	"errors"
	"strings"
)

func (s *Store) CreatePlaylist(name string) (Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Playlist{}, errors.New("empty playlist name")
	}
	now := nowUTC()
	res, err := s.db.Exec(`INSERT OR IGNORE INTO playlists (name, created_at, is_system_list) VALUES (?, ?, 0)`,
		name, timeToUnix(now))
	if err != nil {
		s.log.Error().Err(err).Str("playlist", name).Msg("create playlist")
		return Playlist{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Playlist{}, err
	}
	if affected == 0 {
		return Playlist{}, ErrPlaylistExists
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Playlist{}, err
	}
	return Playlist{ID: int(id), Name: name, CreatedAt: unixToTime(timeToUnix(now))}, nil
}

// AddToPlaylist snapshots the video and links it to the named playlist.
// Adding a video that is already present is a no-op.
func (s *Store) AddToPlaylist(playlistName string, video Video) error {
	tx, err := beginTx(s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("add to playlist: begin")
		return err
	}
	defer tx.Rollback()

	var playlistID int
	err = tx.QueryRow(`SELECT id FROM playlists WHERE name = ?`, playlistName).Scan(&playlistID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("playlist", playlistName).Msg("add to playlist: lookup")
		return err
	}
	now := timeToUnix(nowUTC())
	// ON CONFLICT keeps the row in place; REPLACE would delete it and
	// cascade into every playlist holding the video.
	if _, err := tx.Exec(`INSERT INTO videos (video_id, title, channel, url, duration, is_shorts, published_at, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			title = excluded.title,
			channel = excluded.channel,
			url = excluded.url,
			duration = excluded.duration,
			is_shorts = excluded.is_shorts,
			published_at = excluded.published_at`,
		video.ID, video.Title, video.Channel, video.URL, video.Duration, boolToInt(video.IsShorts), timeToUnix(video.Published), now); err != nil {
		s.log.Error().Err(err).Str("video_id", video.ID).Msg("add to playlist: snapshot")
		return err
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO playlist_items (playlist_id, video_id, added_at) VALUES (?, ?, ?)`,
		playlistID, video.ID, now); err != nil {
		s.log.Error().Err(err).Str("video_id", video.ID).Msg("add to playlist: link")
		return err
	}
	if err := commitTx(tx); err != nil {
		s.log.Error().Err(err).Msg("add to playlist: commit")
		return err
	}
	return nil
}

func (s *Store) RemoveFromPlaylist(playlistName, videoID string) error {
	_, err := s.db.Exec(`DELETE FROM playlist_items
		WHERE video_id = ? AND playlist_id = (SELECT id FROM playlists WHERE name = ?)`, videoID, playlistName)
	if err != nil {
		s.log.Error().Err(err).Str("playlist", playlistName).Str("video_id", videoID).Msg("remove from playlist")
	}
	return err
}

// DeletePlaylist removes a user playlist and, through the foreign key,
// its items. Video and seen records stay.
func (s *Store) DeletePlaylist(name string) error {
	var isSystem int
	err := s.db.QueryRow(`SELECT is_system_list FROM playlists WHERE name = ?`, name).Scan(&isSystem)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("playlist", name).Msg("delete playlist: lookup")
		return err
	}
	if isSystem != 0 {
		return ErrSystemPlaylist
	}
	if _, err := s.db.Exec(`DELETE FROM playlists WHERE name = ?`, name); err != nil {
		s.log.Error().Err(err).Str("playlist", name).Msg("delete playlist")
		return err
	}
	return nil
}

func (s *Store) Playlists() []Playlist {
	rows, err := s.db.Query(`SELECT id, name, created_at, is_system_list FROM playlists ORDER BY is_system_list DESC, name ASC`)
	if err != nil {
		s.log.Error().Err(err).Msg("list playlists")
		return nil
	}
	defer rows.Close()
	playlists := []Playlist{}
	for rows.Next() {
		var playlist Playlist
		var createdAt int64
		var isSystem int
		if err := rows.Scan(&playlist.ID, &playlist.Name, &createdAt, &isSystem); err != nil {
			s.log.Error().Err(err).Msg("scan playlist")
			return nil
		}
		playlist.CreatedAt = unixToTime(createdAt)
		playlist.IsSystem = isSystem != 0
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("list playlists")
		return nil
	}
	return playlists
}

// PlaylistVideos returns the snapshots in a playlist, most recently added
// first. IsSeen is always false; callers patch it from the seen set.
func (s *Store) PlaylistVideos(name string) []Video {
	rows, err := s.db.Query(`SELECT v.video_id, COALESCE(v.title, ''), COALESCE(v.channel, ''), COALESCE(v.url, ''),
			COALESCE(v.duration, ''), v.is_shorts, COALESCE(v.published_at, 0)
		FROM videos v
		JOIN playlist_items pi ON v.video_id = pi.video_id
		JOIN playlists p ON pi.playlist_id = p.id
		WHERE p.name = ?
		ORDER BY pi.added_at DESC, pi.rowid DESC`, name)
	if err != nil {
		s.log.Error().Err(err).Str("playlist", name).Msg("playlist videos")
		return nil
	}
	defer rows.Close()
	videos := []Video{}
	for rows.Next() {
		var video Video
		var isShorts int
		var published int64
		if err := rows.Scan(&video.ID, &video.Title, &video.Channel, &video.URL, &video.Duration, &isShorts, &published); err != nil {
			s.log.Error().Err(err).Msg("scan playlist video")
			return nil
		}
		if video.Duration == "" {
			video.Duration = UnknownDuration
		}
		video.IsShorts = isShorts != 0
		video.Published = unixToTime(published)
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Str("playlist", name).Msg("playlist videos")
		return nil
	}
	return videos
}

func (s *Store) PlaylistCounts() map[string]int {
	rows, err := s.db.Query(`SELECT p.name, COUNT(pi.video_id) FROM playlists p
		LEFT JOIN playlist_items pi ON pi.playlist_id = p.id
		GROUP BY p.id`)
	if err != nil {
		s.log.Error().Err(err).Msg("playlist counts")
		return map[string]int{}
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			s.log.Error().Err(err).Msg("scan playlist count")
			return map[string]int{}
		}
		counts[name] = count
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("playlist counts")
		return map[string]int{}
	}
	return counts
}

func (s *Store) PlaylistItems() []PlaylistItem {
	rows, err := s.db.Query(`SELECT playlist_id, video_id, added_at FROM playlist_items ORDER BY added_at, rowid`)
	if err != nil {
		s.log.Error().Err(err).Msg("list playlist items")
		return nil
	}
	defer rows.Close()
	items := []PlaylistItem{}
	for rows.Next() {
		var item PlaylistItem
		var addedAt int64
		if err := rows.Scan(&item.PlaylistID, &item.VideoID, &addedAt); err != nil {
			s.log.Error().Err(err).Msg("scan playlist item")
			return nil
		}
		item.AddedAt = unixToTime(addedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("list playlist items")
		return nil
	}
	return items
}

func (s *Store) VideoRecords() []VideoRecord {
	rows, err := s.db.Query(`SELECT video_id, COALESCE(title, ''), COALESCE(channel, ''), COALESCE(url, ''),
			COALESCE(duration, ''), is_shorts, COALESCE(published_at, 0), first_seen
		FROM videos ORDER BY first_seen, video_id`)
	if err != nil {
		s.log.Error().Err(err).Msg("list video records")
		return nil
	}
	defer rows.Close()
	records := []VideoRecord{}
	for rows.Next() {
		var record VideoRecord
		var isShorts int
		var published, firstSeen int64
		if err := rows.Scan(&record.ID, &record.Title, &record.Channel, &record.URL, &record.Duration, &isShorts, &published, &firstSeen); err != nil {
			s.log.Error().Err(err).Msg("scan video record")
			return nil
		}
		record.IsShorts = isShorts != 0
		record.Published = unixToTime(published)
		record.FirstSeen = unixToTime(firstSeen)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("list video records")
		return nil
	}
	return records
}
