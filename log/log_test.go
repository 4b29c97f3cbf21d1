package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_ErrorIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Error("joining voice channel", errors.New("timeout"))

	out := buf.String()
	assert.Contains(t, out, "[ERROR] in log/log_test.go:")
	assert.Contains(t, out, "joining voice channel")
	assert.Contains(t, out, "timeout")
}

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Info("session started")
	assert.Contains(t, buf.String(), "[INFO] session started")
}

func TestLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	defer func() { exit = orig }()

	New(&buf).Fatal("loading config", errors.New("missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL]")
}

func TestCodeBlock_Truncates(t *testing.T) {
	msg := codeBlock(strings.Repeat("x", 3000))
	assert.Less(t, len(msg), 2000)
	assert.True(t, strings.HasSuffix(msg, "...\n```"))
}
