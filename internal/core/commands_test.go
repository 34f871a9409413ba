package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSubmitArgs_RoundTrip(t *testing.T) {
	settings := PrintSettings{
		Copies:        5,
		Duplex:        DuplexLongEdge,
		PaperSize:     "a4",
		Orientation:   OrientationLandscape,
		PagesPerSheet: 2,
		PageRange:     "1-4,7",
	}

	args := BuildSubmitArgs("/tmp/report.pdf", "labprint", settings)

	queue, parsed, remotePath, err := ParseSubmitArgs(args)
	require.NoError(t, err)

	assert.Equal(t, "labprint", queue)
	assert.Equal(t, "/tmp/report.pdf", remotePath)
	assert.Equal(t, settings.Duplex, parsed.Duplex)
	assert.Equal(t, settings.PaperSize, parsed.PaperSize)
	assert.Equal(t, settings.Orientation, parsed.Orientation)
	assert.Equal(t, settings.PagesPerSheet, parsed.PagesPerSheet)
	assert.Equal(t, settings.PageRange, parsed.PageRange)

	// Copies never survives the mapping: fanout happens upstream and
	// every issued command prints exactly one copy.
	assert.Equal(t, 1, parsed.Copies)
}

func TestBuildSubmitArgs_DefaultsOmitOptions(t *testing.T) {
	args := BuildSubmitArgs("/tmp/a.txt", "q", PrintSettings{Copies: 1})

	assert.Equal(t, []string{"-d", "q", "-n", "1", "/tmp/a.txt"}, args)
}

func TestBuildSubmitCommand_QuotesPaths(t *testing.T) {
	command := BuildSubmitCommand("/tmp/my report.pdf", "labprint", PrintSettings{Copies: 1})

	assert.Contains(t, command, "'/tmp/my report.pdf'")
	assert.Contains(t, command, "lp -d labprint -n 1")
}

func TestParseSubmitOutput(t *testing.T) {
	id, ok := ParseSubmitOutput("request id is labprint-482 (1 file(s))\n")
	require.True(t, ok)
	assert.Equal(t, "labprint-482", id)

	_, ok = ParseSubmitOutput("lp: Error - unknown destination\n")
	assert.False(t, ok)

	_, ok = ParseSubmitOutput("")
	assert.False(t, ok)
}

func TestParseQueueListing(t *testing.T) {
	output := "labprint-481   alice   10240   Mon 09 Feb 2026 10:01:00\n" +
		"labprint-482   bob     2048    Mon 09 Feb 2026 10:02:00\n" +
		"\n"

	entries := ParseQueueListing(output)
	require.Len(t, entries, 2)

	assert.Equal(t, "labprint-481", entries[0].RemoteID)
	assert.Equal(t, "alice", entries[0].Owner)
	assert.Equal(t, int64(10240), entries[0].SizeBytes)
	assert.Equal(t, "labprint-482", entries[1].RemoteID)
}

func TestParseQueueListing_Empty(t *testing.T) {
	assert.Empty(t, ParseQueueListing(""))
	assert.Empty(t, ParseQueueListing("\n\n"))
}

func TestParseQueueListing_KeepsOddLinesRaw(t *testing.T) {
	entries := ParseQueueListing("weird-line-without-fields\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "weird-line-without-fields", entries[0].RemoteID)
	assert.Equal(t, "weird-line-without-fields", entries[0].Raw)
}

func TestBuildCancelCommand(t *testing.T) {
	assert.Equal(t, "cancel labprint-482", BuildCancelCommand("labprint-482"))
	assert.Equal(t, `cancel 'odd id'`, BuildCancelCommand("odd id"))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "plain", shellQuote("plain"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "'with space'", shellQuote("with space"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "'a$b'", shellQuote("a$b"))
}
