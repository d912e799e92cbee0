package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/datastore"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 12
)

// Storage keeps one Record per guild in a JSON-backed datastore.
type Storage struct {
	mu   sync.Mutex
	ds   *datastore.DataStore
	stop context.CancelFunc
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

type TrackHistoryRecord struct {
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	URI        string    `json:"uri"`
	LengthMs   int64     `json:"length_ms"`
	IsStream   bool      `json:"is_stream"`
	PlayedAt   time.Time `json:"played_at"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	TracksHistoryList   []TrackHistoryRecord   `json:"tracks_history"`
}

// New opens the datastore at filePath. Its background autosave runs until
// Close.
func New(filePath string) (*Storage, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ds, err := datastore.New(ctx, filePath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds, stop: cancel}, nil
}

// Close stops the autosave loop and flushes pending records to disk. The
// datastore waits for autosave to exit, so the loop is cancelled first.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return s.ds.Close()
}

// getOrCreateGuildRecord must be called with s.mu held.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	var record Record
	exists, err := s.ds.Get(guildID, &record)
	if err != nil {
		return nil, fmt.Errorf("load record for guild %s: %w", guildID, err)
	}
	if !exists {
		record = Record{
			CommandsHistoryList: []CommandHistoryRecord{},
			TracksHistoryList:   []TrackHistoryRecord{},
		}
		if err := s.ds.Set(guildID, record); err != nil {
			return nil, fmt.Errorf("create record for guild %s: %w", guildID, err)
		}
		return &record, nil
	}

	record.CommandsHistoryList = tail(record.CommandsHistoryList, commandHistoryLimit)
	record.TracksHistoryList = tail(record.TracksHistoryList, tracksHistoryLimit)
	return &record, nil
}

func tail[T any](list []T, limit int) []T {
	if len(list) > limit {
		return append([]T(nil), list[len(list)-limit:]...)
	}
	return list
}

// AppendCommandToHistory appends a command history record for a guild.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	if command.Datetime.IsZero() {
		command.Datetime = time.Now()
	}

	record.CommandsHistoryList = tail(append(record.CommandsHistoryList, command), commandHistoryLimit)
	return s.ds.Set(guildID, *record)
}

// SetCommand is a shorthand for AppendCommandToHistory stamped with the
// current time.
func (s *Storage) SetCommand(guildID, channelID, channelName, guildName, userID, username, commandName string) error {
	return s.AppendCommandToHistory(guildID, CommandHistoryRecord{
		ChannelID:   channelID,
		ChannelName: channelName,
		GuildName:   guildName,
		UserID:      userID,
		Username:    username,
		Command:     commandName,
		Datetime:    time.Now(),
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// AppendTrackToHistory records a started track. Only the most recent
// tracksHistoryLimit entries are kept.
func (s *Storage) AppendTrackToHistory(guildID string, t TrackHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	if t.PlayedAt.IsZero() {
		t.PlayedAt = time.Now()
	}

	record.TracksHistoryList = tail(append(record.TracksHistoryList, t), tracksHistoryLimit)
	return s.ds.Set(guildID, *record)
}

// FetchTrackHistory returns the guild's played tracks, most recent last.
func (s *Storage) FetchTrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistoryList, nil
}
