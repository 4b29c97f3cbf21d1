package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/EasterCompany/dex-voice-bridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutAddress(t *testing.T) {
	db, err := New(nil)
	assert.NoError(t, err)
	assert.Nil(t, db)

	db, err = New(&config.RedisConfig{})
	assert.NoError(t, err)
	assert.Nil(t, db)
}

func TestNew_UnreachableServer(t *testing.T) {
	db, err := New(&config.RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "could not connect to cache at 127.0.0.1:1")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "voice-bridge:notes:g1", notesKey("g1"))
	assert.Equal(t, "voice-bridge:recording:g1_u1_5.ogg", recordingKey("g1_u1_5.ogg"))
	assert.Equal(t, "voice-bridge:realtime:last_event", LastEventKey)
}

type fakeList struct {
	key     string
	entries []string
	max     int64
	err     error
}

func (f *fakeList) AddToList(_ context.Context, key, value string, maxLength int64) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	f.max = maxLength
	f.entries = append(f.entries, value)
	return nil
}

func TestLogWriter(t *testing.T) {
	list := &fakeList{}
	var out bytes.Buffer
	w := NewLogWriter(list, &out)

	n, err := w.Write([]byte("[INFO] hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, []string{"[INFO] hello"}, list.entries)
	assert.Equal(t, LogsKey, list.key)
	assert.Equal(t, int64(maxLogs), list.max)
	assert.Equal(t, "[INFO] hello\n", out.String())
}

func TestLogWriter_RedisFailureStillWrites(t *testing.T) {
	list := &fakeList{err: errors.New("connection refused")}
	var out bytes.Buffer
	w := NewLogWriter(list, &out)

	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Failed to write log to Redis: connection refused")
	assert.Contains(t, out.String(), "line\n")
}
