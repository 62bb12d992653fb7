package bus

import (
	"errors"
	"fmt"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/google/uuid"
)

// ErrFull is returned by Enqueue when the bus is at capacity.
var ErrFull = errors.New("bus: queue is full")

// Stats reports the bus's current occupancy.
type Stats struct {
	Depth    int
	Capacity int
}

// Bus is a bounded FIFO of inbound messages. It has exactly one intended
// consumer loop (ProcessOne called repeatedly); multiple concurrent
// producers are safe, since the underlying channel is the synchronization
// point.
type Bus struct {
	queue chan model.InboundMessage
	cap   int
}

// New builds a Bus with the given capacity. capacity <= 0 is treated as 1.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{queue: make(chan model.InboundMessage, capacity), cap: capacity}
}

// Enqueue assigns msg an id if it doesn't already have one and pushes it
// onto the queue, or returns ErrFull without blocking if the queue is at
// capacity.
func (b *Bus) Enqueue(msg model.InboundMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	select {
	case b.queue <- msg:
		return msg.ID, nil
	default:
		return "", fmt.Errorf("%w (capacity %d)", ErrFull, b.cap)
	}
}

// ProcessOne pops the oldest queued message, if any, and hands it to
// handle. Returns false if the queue was empty.
func (b *Bus) ProcessOne(handle func(model.InboundMessage)) bool {
	select {
	case msg := <-b.queue:
		handle(msg)
		return true
	default:
		return false
	}
}

// Stats reports the current queue depth and configured capacity.
func (b *Bus) Stats() Stats {
	return Stats{Depth: len(b.queue), Capacity: b.cap}
}
