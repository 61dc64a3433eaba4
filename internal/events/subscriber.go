package events

import (
	"encoding/json"
	"fmt"
)

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages matching any of patterns on one channel.
	// The returned cancel unsubscribes and closes the channel.
	Subscribe(patterns ...string) (<-chan Message, func(), error)
	Close() error
}

// Decode unmarshals m into the event type registered for its topic.
func Decode(m Message) (any, error) {
	var v any
	switch m.Topic {
	case TopicGraphGenerated:
		v = &GraphGenerated{}
	case TopicGraphAdded:
		v = &GraphAdded{}
	case TopicGraphScanned:
		v = &GraphScanned{}
	case TopicGraphDeleted:
		v = &GraphDeleted{}
	case TopicStreamStarted:
		v = &StreamStarted{}
	case TopicStreamCompleted:
		v = &StreamCompleted{}
	case TopicStreamAborted:
		v = &StreamAborted{}
	default:
		return nil, fmt.Errorf("unknown topic %q", m.Topic)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", m.Topic, err)
	}
	return v, nil
}
