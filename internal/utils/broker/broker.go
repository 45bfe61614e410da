package broker

import (
	"sync"
)

const subscriberBuffer = 16

// Broker fans messages out to per-topic subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the message.
type Broker struct {
	subscribers map[string][]chan interface{}
	mu          sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
	}
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, subscriberBuffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans := b.subscribers[topic]
	for i, c := range chans {
		if c == ch {
			b.subscribers[topic] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish reports how many subscribers received msg.
func (b *Broker) Publish(topic string, msg interface{}) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
