package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	in, err := Decode([][]byte{[]byte("A"), []byte("TIME_REQUEST"), []byte("3000000000")})
	require.NoError(t, err)
	assert.Equal(t, "A", in.Sender)
	assert.Equal(t, TimeRequest, in.Verb)
	assert.Equal(t, [][]byte{[]byte("3000000000")}, in.Payload)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([][]byte{[]byte("A")})
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	frames := Encode("A", ACK, []byte("0"), []byte("2"))
	assert.Equal(t, [][]byte{[]byte("A"), []byte("ACK"), []byte("0"), []byte("2")}, frames)
}

func TestRetarget(t *testing.T) {
	orig := [][]byte{[]byte("B"), []byte("PUBLISH"), []byte("topic/x"), []byte("value1")}
	dup := Retarget(orig, "A")
	assert.Equal(t, [][]byte{[]byte("A"), []byte("PUBLISH"), []byte("topic/x"), []byte("value1")}, dup)

	// original must be untouched
	assert.Equal(t, "B", string(orig[0]))
}
