package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initForTest(t *testing.T, o Options) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, o))
	t.Cleanup(Shutdown)
	t.Cleanup(func() { Initialize("", Options{}) })
	return dir
}

func readLog(t *testing.T, dir string, cat Category) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "logs", string(cat)+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}

func TestDisabledIsNoop(t *testing.T) {
	dir := initForTest(t, Options{DebugMode: false})

	Session("session %s started", "s1")
	BridgeError("boom")

	_, err := os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err), "no log directory when disabled")
}

func TestCategoryFilesCreatedLazily(t *testing.T) {
	dir := initForTest(t, Options{DebugMode: true, Level: "debug"})

	Session("turn start")
	Gen("connected")

	assert.Contains(t, readLog(t, dir, CategorySession), "turn start")
	assert.Contains(t, readLog(t, dir, CategoryGen), "connected")
	assert.Empty(t, readLog(t, dir, CategoryBridge), "untouched categories create no file")
}

func TestLevelFiltering(t *testing.T) {
	dir := initForTest(t, Options{DebugMode: true, Level: "warn"})

	l := Get(CategoryDecode)
	l.Debug("debug line")
	l.Info("info line")
	l.Error("error line")

	out := readLog(t, dir, CategoryDecode)
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "error line")
}

func TestCategoryFiltering(t *testing.T) {
	dir := initForTest(t, Options{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"session": true},
	})

	Session("kept")
	Bridge("dropped")

	assert.Contains(t, readLog(t, dir, CategorySession), "kept")
	assert.Empty(t, readLog(t, dir, CategoryBridge))
}

func TestInitializeRequiresStateDirInDebug(t *testing.T) {
	err := Initialize("", Options{DebugMode: true})
	assert.Error(t, err)
	t.Cleanup(func() { Initialize("", Options{}) })
}
