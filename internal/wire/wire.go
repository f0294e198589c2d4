// Package wire decodes and encodes the broker's router-socket frames.
//
// The federation speaks a flat multi-frame protocol: the first frame carries
// the sender identity (supplied by the ROUTER socket on receive, or the
// destination identity on send), the second frame carries a verb, and any
// remaining frames carry the verb's payload.
package wire

import "fmt"

// Verb identifies a federation message type.
type Verb string

const (
	HELLO        Verb = "HELLO"
	ACK          Verb = "ACK"
	BYE          Verb = "BYE"
	DIE          Verb = "DIE"
	TimeRequest  Verb = "TIME_REQUEST"
	TimeDelta    Verb = "TIME_DELTA"
	Publish      Verb = "PUBLISH"
)

// Inbound is a decoded message arriving from a simulator.
type Inbound struct {
	Sender  string
	Verb    Verb
	Payload [][]byte
}

// Decode splits a raw router-socket frame set into sender, verb, and payload.
//
// frames[0] is the sender identity, frames[1] is the verb; everything after
// that is payload. A message with fewer than two frames is malformed.
func Decode(frames [][]byte) (Inbound, error) {
	if len(frames) < 2 {
		return Inbound{}, fmt.Errorf("wire: message has %d frames, need at least 2", len(frames))
	}
	return Inbound{
		Sender:  string(frames[0]),
		Verb:    Verb(frames[1]),
		Payload: frames[2:],
	}, nil
}

// Encode builds the outbound frame set for a verb directed at dest: the
// destination identity first, then the verb, then any payload frames.
func Encode(dest string, verb Verb, payload ...[]byte) [][]byte {
	frames := make([][]byte, 0, len(payload)+2)
	frames = append(frames, []byte(dest))
	frames = append(frames, []byte(verb))
	frames = append(frames, payload...)
	return frames
}

// Retarget clones frames and overwrites the first (destination) frame with
// newDest, leaving every other frame byte-identical. Used by the publish
// router to fan the same PUBLISH out to each subscriber under its own
// identity without re-deriving the verb/topic/value frames each time.
func Retarget(frames [][]byte, newDest string) [][]byte {
	out := make([][]byte, len(frames))
	copy(out, frames)
	out[0] = []byte(newDest)
	return out
}
