package pubrouter

import (
	"testing"

	"github.com/beroset/fncs/internal/registry"
	"github.com/stretchr/testify/assert"
)

func member(name string, topics ...string) *registry.State {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return &registry.State{Name: name, SubscribedTopics: set}
}

func TestRouteMatches(t *testing.T) {
	a := member("A", "topic/x")
	b := member("B", "topic/y")

	frames := [][]byte{[]byte("C"), []byte("PUBLISH"), []byte("topic/x"), []byte("value1")}
	deliveries := Route([]*registry.State{a, b}, "topic/x", frames)

	assert.Len(t, deliveries, 1)
	assert.Equal(t, "A", deliveries[0].Dest.Name)
	assert.Equal(t, [][]byte{[]byte("A"), []byte("PUBLISH"), []byte("topic/x"), []byte("value1")}, deliveries[0].Frames)
	assert.True(t, a.MessagesPending)
	assert.False(t, b.MessagesPending)
}

func TestRouteNoMatch(t *testing.T) {
	a := member("A", "topic/x")
	frames := [][]byte{[]byte("C"), []byte("PUBLISH"), []byte("topic/z"), []byte("value1")}
	deliveries := Route([]*registry.State{a}, "topic/z", frames)
	assert.Empty(t, deliveries)
	assert.False(t, a.MessagesPending)
}

func TestRouteMultipleSubscribersInOrder(t *testing.T) {
	a := member("A", "topic/x")
	b := member("B", "topic/x")
	frames := [][]byte{[]byte("C"), []byte("PUBLISH"), []byte("topic/x"), []byte("v")}
	deliveries := Route([]*registry.State{a, b}, "topic/x", frames)
	assert.Len(t, deliveries, 2)
	assert.Equal(t, "A", deliveries[0].Dest.Name)
	assert.Equal(t, "B", deliveries[1].Dest.Name)
}

func TestRouteTwiceDeliversTwice(t *testing.T) {
	a := member("A", "topic/x")
	frames := [][]byte{[]byte("C"), []byte("PUBLISH"), []byte("topic/x"), []byte("v")}
	d1 := Route([]*registry.State{a}, "topic/x", frames)
	d2 := Route([]*registry.State{a}, "topic/x", frames)
	assert.Len(t, d1, 1)
	assert.Len(t, d2, 1)
}
