// Package cache mirrors notes, realtime diagnostics, recordings and logs into Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "voice-bridge:"

	LastEventKey = keyPrefix + "realtime:last_event"
	LogsKey      = keyPrefix + "logs"

	maxLogs        = 100
	defaultTimeout = 5 * time.Second
)

func notesKey(guildID string) string {
	return fmt.Sprintf("%snotes:%s", keyPrefix, guildID)
}

func recordingKey(name string) string {
	return keyPrefix + "recording:" + name
}

type DB struct {
	rdb          *redis.Client
	recordingTTL time.Duration
}

// New connects to Redis. It returns nil, nil when no address is configured.
func New(cfg *config.RedisConfig) (*DB, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	db := &DB{rdb: rdb, recordingTTL: time.Duration(cfg.RecordingTTLMinutes) * time.Minute}
	if err := db.Ping(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to cache at %s: %w", cfg.Addr, err)
	}
	return db, nil
}

func (db *DB) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return db.rdb.Ping(ctx).Err()
}

func (db *DB) Close() error {
	return db.rdb.Close()
}

// SaveNotes stores the full note list of a guild.
func (db *DB) SaveNotes(guildID string, list []notes.Note) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("could not marshal notes: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return db.rdb.Set(ctx, notesKey(guildID), data, 0).Err()
}

// LoadNotes returns nil when the guild has no mirrored notes.
func (db *DB) LoadNotes(guildID string) ([]notes.Note, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	data, err := db.rdb.Get(ctx, notesKey(guildID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load notes: %w", err)
	}
	var list []notes.Note
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("could not unmarshal notes: %w", err)
	}
	return list, nil
}

// Dump keeps the most recent raw realtime event.
func (db *DB) Dump(raw []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return db.rdb.Set(ctx, LastEventKey, raw, 0).Err()
}

// SaveRecording stores an utterance capture with the configured TTL.
func (db *DB) SaveRecording(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return db.rdb.Set(ctx, recordingKey(name), data, db.recordingTTL).Err()
}

// AddToList adds an item to the start of a list and trims the list to a max length.
func (db *DB) AddToList(ctx context.Context, key, value string, maxLength int64) error {
	pipe := db.rdb.Pipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, maxLength-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Keys lists every key this service owns.
func (db *DB) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := db.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (db *DB) Type(ctx context.Context, key string) (string, error) {
	return db.rdb.Type(ctx, key).Result()
}

func (db *DB) Get(ctx context.Context, key string) (string, error) {
	return db.rdb.Get(ctx, key).Result()
}

func (db *DB) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return db.rdb.LRange(ctx, key, start, stop).Result()
}
