package hikapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileList(t *testing.T) {
	raw := []byte(`[
		{"Name": "ch01_20260815T101500.mp4", "Size": 104857600,
		 "StartTime": "2026-08-15 10:15:00", "EndTime": "2026-08-15 10:30:00"},
		{"Name": "ch01_20260815T103000.mp4", "Size": 52428800,
		 "StartTime": "2026-08-15 10:30:00", "EndTime": "2026-08-15 10:37:30"}
	]`)

	files, err := parseFileList(raw)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "ch01_20260815T101500.mp4", files[0].Name)
	assert.Equal(t, int64(104857600), files[0].Size)
	assert.Equal(t, time.Date(2026, 8, 15, 10, 15, 0, 0, time.UTC), files[0].StartTime)
	assert.Equal(t, 15*time.Minute, files[0].EndTime.Sub(files[0].StartTime))
}

func TestParseFileListEmpty(t *testing.T) {
	files, err := parseFileList([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestParseFileListBadTimestamp(t *testing.T) {
	raw := []byte(`[{"Name": "x.mp4", "Size": 1, "StartTime": "not-a-time", "EndTime": "2026-08-15 10:30:00"}]`)
	_, err := parseFileList(raw)
	assert.Error(t, err)
}

func TestParseFileListMalformed(t *testing.T) {
	_, err := parseFileList([]byte(`{"oops": true}`))
	assert.Error(t, err)
}
