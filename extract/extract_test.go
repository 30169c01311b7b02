package extract_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/extract"
)

func TestUnavailable(t *testing.T) {
	_, err := extract.Unavailable{}.Extract(context.Background(), "CLV-PG2025", t.TempDir(), "sys")
	assert.ErrorIs(t, err, extract.ErrUnavailable)
}

func TestNew_EmptyCommandIsUnavailable(t *testing.T) {
	_, ok := extract.New("   ", nil).(extract.Unavailable)
	assert.True(t, ok)

	c, ok := extract.New("/opt/sap/export --fast", nil).(extract.Command)
	require.True(t, ok)
	assert.Equal(t, "/opt/sap/export", c.Path)
	assert.Equal(t, []string{"--fast"}, c.Args)
}

func TestCommand_MissingBinaryIsUnavailable(t *testing.T) {
	c := extract.Command{Path: "definitely-not-a-real-extractor"}
	_, err := c.Extract(context.Background(), "v", t.TempDir(), "s")
	assert.ErrorIs(t, err, extract.ErrUnavailable)
}

func TestCommand_WritesFeed(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	c := extract.Command{Path: "sh", Args: []string{"-c", `test "$KPI_VARIANT" = CLV-PG2025 && touch "$KPI_OUTPUT_DIR/_woStatus.xlsx"`}}
	path, err := c.Extract(context.Background(), "CLV-PG2025", dir, "sys")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, extract.FeedFileName), path)
}

func TestCommand_NoOutputFile(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	_, err := extract.Command{Path: "true"}.Extract(context.Background(), "v", t.TempDir(), "s")
	require.Error(t, err)
	assert.NotErrorIs(t, err, extract.ErrUnavailable)
}
