package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndHeader(t *testing.T) {
	var buf bytes.Buffer
	sink, err := Open(&buf)
	require.NoError(t, err)

	require.NoError(t, sink.Record(0, "topic/x", []byte("value1")))
	require.NoError(t, sink.Record(1000000000, "topic/y", []byte("42")))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#nanoseconds\ttopic\tvalue", lines[0])
	assert.Equal(t, "0\ttopic/x\tvalue1", lines[1])
	assert.Equal(t, "1000000000\ttopic/y\t42", lines[2])
}
