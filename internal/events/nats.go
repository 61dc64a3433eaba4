package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriberBuffer is the per-subscription channel capacity. A subscriber
// that falls further behind loses messages.
const subscriberBuffer = 64

// NATSPublisher sends each event as JSON on the subject named by its topic.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("dyngraph-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber receives lifecycle events from NATS. The connection
// reconnects forever; pass nats options to observe disconnects.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	base := []nats.Option{
		nats.Name("dyngraph-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription fans several NATS subscriptions into one channel.
type subscription struct {
	mu     sync.Mutex
	ch     chan Message
	subs   []*nats.Subscription
	closed bool
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Message{Topic: msg.Subject, Data: msg.Data}:
	default:
	}
}

func (s *subscription) cancel() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	// Drop anything undelivered so a reader sees the close right away.
	for {
		select {
		case <-s.ch:
		default:
			close(s.ch)
			return
		}
	}
}

// Subscribe delivers every message whose subject matches one of patterns
// (NATS wildcards allowed) on a single channel. No patterns means TopicAll.
// The returned cancel unsubscribes and closes the channel; it may be called
// more than once.
func (n *NATSSubscriber) Subscribe(patterns ...string) (<-chan Message, func(), error) {
	if len(patterns) == 0 {
		patterns = []string{TopicAll}
	}
	s := &subscription{ch: make(chan Message, subscriberBuffer)}
	for _, p := range patterns {
		sub, err := n.conn.Subscribe(p, s.deliver)
		if err != nil {
			s.cancel()
			return nil, nil, fmt.Errorf("subscribing to %s: %w", p, err)
		}
		s.subs = append(s.subs, sub)
	}
	// Interest must reach the server before returning, or events published
	// on other connections right after could be missed.
	if err := n.conn.Flush(); err != nil {
		s.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return s.ch, s.cancel, nil
}

func (n *NATSSubscriber) Close() error {
	n.conn.Close()
	return nil
}
