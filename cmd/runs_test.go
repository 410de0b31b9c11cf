package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-recon/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	runs := []model.ComparisonRun{
		{
			ID:                 "0b4f7c1e-8d2a-4f55-9a61-3f2d1c9e7a10",
			PropertyID:         "P1",
			OverallConsistency: 93,
			CreatedAt:          time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:                 "short",
			PropertyID:         "P2",
			OverallConsistency: 41,
			CriticalIssues:     2,
			CreatedAt:          time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CONSISTENCY")
	assert.Contains(t, lines[2], "0b4f7c1e")
	assert.NotContains(t, lines[2], "8d2a")
	assert.Contains(t, lines[2], "93%")
	assert.Contains(t, lines[2], "high")
	assert.Contains(t, lines[3], "short")
	assert.Contains(t, lines[3], "low")
	assert.Contains(t, lines[3], "2026-03-01 09:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "", truncateID(""))
}
