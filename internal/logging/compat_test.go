package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeWriterParsesCategory(t *testing.T) {
	path := initTo(t, Config{})
	bw := NewBridgeWriter(CompCLI)

	tests := []struct {
		input    string
		wantComp string
		wantMsg  string
	}{
		{"[LOADER] fetched messages.json\n", CompArchive, "fetched messages.json"},
		{"[INDEX] rebuilt 12 records\n", CompSearch, "rebuilt 12 records"},
		{"[WS] client gone\n", CompWeb, "client gone"},
		{"15:04:05.000000 [SQLITE] checkpoint\n", CompSnapshot, "checkpoint"},
		{"plain line\n", CompCLI, "plain line"},
	}
	for _, tt := range tests {
		_, err := bw.Write([]byte(tt.input))
		require.NoError(t, err)
	}

	records := readRecords(t, path)
	require.Len(t, records, len(tests))
	for i, tt := range tests {
		assert.Equal(t, tt.wantComp, records[i]["component"], tt.input)
		assert.Equal(t, tt.wantMsg, records[i]["msg"], tt.input)
	}
}

func TestBridgeWriterSkipsBlankLines(t *testing.T) {
	path := initTo(t, Config{})
	bw := NewBridgeWriter(CompCLI)

	n, err := bw.Write([]byte("   \n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, readRecords(t, path))
}

func TestStripLogTimestamp(t *testing.T) {
	assert.Equal(t, "hello", stripLogTimestamp("15:04:05.000000 hello"))
	assert.Equal(t, "hello", stripLogTimestamp("15:04:05 hello"))
	assert.Equal(t, "no stamp", stripLogTimestamp("no stamp"))
}

func TestCanonicalComponent(t *testing.T) {
	assert.Equal(t, CompArchive, canonicalComponent("dataset"))
	assert.Equal(t, CompHighlight, canonicalComponent("hl"))
	assert.Equal(t, CompHTTP, canonicalComponent("http-server"))
	assert.Equal(t, "custom", canonicalComponent("custom"))
}
