package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"trade-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintGaps(t *testing.T) {
	// Arrange
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	gaps := []models.Gap{
		{Ticker: "ABC", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), GapPct: 20, Direction: "up", Open: 12, PrevClose: 10, Volume: 5000},
	}

	// Act
	printGaps(cmd, gaps)

	// Assert
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "DATE"))
	assert.Contains(t, lines[1], "2024-03-05")
	assert.Contains(t, lines[1], "20.00")
	assert.Contains(t, lines[1], "up")
}

func TestListRequiresTicker(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"list"})

	err := cmd.Execute()

	assert.Error(t, err)
}
