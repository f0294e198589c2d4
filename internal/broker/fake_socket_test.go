package broker

import (
	"errors"
	"sync"

	"github.com/destiny/zmq4/v25"
)

// fakeSocket is an in-memory stand-in for a zmq4 router socket: Recv drains
// a preloaded inbox queue, Send records every outbound message for
// assertions. It implements this package's narrow socket interface.
type fakeSocket struct {
	mu     sync.Mutex
	inbox  [][][]byte
	sent   [][][]byte
	closed bool
}

func newFakeSocket(inbox ...[][]byte) *fakeSocket {
	return &fakeSocket{inbox: inbox}
}

func (f *fakeSocket) push(frames [][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, frames)
}

func (f *fakeSocket) Recv() (zmq4.Msg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbox) == 0 {
		return zmq4.Msg{}, errors.New("fakeSocket: inbox empty")
	}
	frames := f.inbox[0]
	f.inbox = f.inbox[1:]
	return zmq4.NewMsgFrom(frames...), nil
}

func (f *fakeSocket) Send(msg zmq4.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg.Frames)
	return nil
}

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSocket) sentFrames() [][][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func frame(s string) []byte { return []byte(s) }

func msgFrames(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}
