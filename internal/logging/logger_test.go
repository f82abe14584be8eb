package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[(DEBUG|INFO|WARNING|ERROR)\] `)

func TestHandlerLineFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelDebug))

	logger.Warn("schema clone failed", "table", "users", "error", "access denied")

	line := buf.String()
	assert.Regexp(t, linePattern, line)
	assert.Contains(t, line, "[WARNING] schema clone failed")
	assert.Contains(t, line, "table=users")
	assert.Contains(t, line, `error="access denied"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[INFO] shown")
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).With("suite", "Schema").WithGroup("db")

	logger.Info("query", "table", "users")

	assert.Contains(t, buf.String(), "suite=Schema")
	assert.Contains(t, buf.String(), "db.table=users")
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelName(slog.LevelDebug))
	assert.Equal(t, "INFO", LevelName(slog.LevelInfo))
	assert.Equal(t, "WARNING", LevelName(slog.LevelWarn))
	assert.Equal(t, "ERROR", LevelName(slog.LevelError))
}

func TestDailyFileRotatesOnDayChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	df := NewDailyFile(dir)
	df.now = func() time.Time { return now }
	t.Cleanup(func() { df.Close() })

	_, err := df.Write([]byte("first\n"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = df.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "test_2024-03-01.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "test_2024-03-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	assert.Equal(t, "second\n", string(second))
}

func TestDailyFileAppends(t *testing.T) {
	dir := t.TempDir()
	df := NewDailyFile(dir)
	_, err := df.Write([]byte("a\n"))
	require.NoError(t, err)
	require.NoError(t, df.Close())

	df2 := NewDailyFile(dir)
	_, err = df2.Write([]byte("b\n"))
	require.NoError(t, err)
	require.NoError(t, df2.Close())

	data, err := os.ReadFile(df2.Path())
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
}

func TestNewVerboseWritesBothSinks(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	logger, closeFn := New(Options{Dir: dir, Verbose: true, Stdout: &out})

	logger.Info("run started")
	require.NoError(t, closeFn())

	assert.Contains(t, out.String(), "[INFO] run started")
	data, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] run started")
}

func TestNewQuietSkipsStdout(t *testing.T) {
	var out bytes.Buffer
	logger, closeFn := New(Options{Dir: t.TempDir(), Stdout: &out})
	defer closeFn()

	logger.Info("quiet")
	assert.Empty(t, out.String())
}
