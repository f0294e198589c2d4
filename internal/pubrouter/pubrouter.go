// Package pubrouter fans an inbound PUBLISH out to every subscribed member
// by exact topic match.
package pubrouter

import (
	"github.com/beroset/fncs/internal/registry"
	"github.com/beroset/fncs/internal/wire"
)

// Delivery is one outbound copy of a PUBLISH addressed to a subscriber.
type Delivery struct {
	Dest   *registry.State
	Frames [][]byte
}

// Route finds every member subscribed to topic (exact string match) and
// returns one Delivery per match, with frames retargeted to that member and
// the member's MessagesPending flag already set. frames is the raw inbound
// PUBLISH frame set (sender, "PUBLISH", topic, value); Route does not
// inspect it beyond what Retarget needs.
func Route(members []*registry.State, topic string, frames [][]byte) []Delivery {
	var deliveries []Delivery
	for _, m := range members {
		if !m.Subscribes(topic) {
			continue
		}
		m.MessagesPending = true
		deliveries = append(deliveries, Delivery{
			Dest:   m,
			Frames: wire.Retarget(frames, m.Name),
		})
	}
	return deliveries
}
