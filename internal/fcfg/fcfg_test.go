package fcfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeDelta(t *testing.T) {
	root, err := Parse([]byte("time_delta = 1s\n"))
	require.NoError(t, err)

	v, ok := root.Resolve("/time_delta")
	require.True(t, ok)
	d, err := time.ParseDuration(v)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestParseValuesAndSubscriptions(t *testing.T) {
	doc := "time_delta = 100ms\n" +
		"values\n" +
		"    0\n" +
		"        topic = topic/x\n" +
		"    1\n" +
		"        topic = topic/y\n"

	root, err := Parse([]byte(doc))
	require.NoError(t, err)

	topics := Subscriptions(root)
	assert.ElementsMatch(t, []string{"topic/x", "topic/y"}, topics)
}

func TestParseNoValues(t *testing.T) {
	root, err := Parse([]byte("time_delta = 1s\n"))
	require.NoError(t, err)
	assert.Empty(t, Subscriptions(root))
}

func TestParseMissingTimeDelta(t *testing.T) {
	root, err := Parse([]byte("values\n    0\n        topic = topic/x\n"))
	require.NoError(t, err)
	_, ok := root.Resolve("/time_delta")
	assert.False(t, ok)
}

func TestParseComment(t *testing.T) {
	doc := "# a comment\ntime_delta = 1s\n"
	root, err := Parse([]byte(doc))
	require.NoError(t, err)
	v, ok := root.Resolve("/time_delta")
	require.True(t, ok)
	assert.Equal(t, "1s", v)
}
