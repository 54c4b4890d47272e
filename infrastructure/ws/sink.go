package ws

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

// Sink buffers the encoded frames of one websocket connection.
// It never blocks a broadcast: a full buffer closes the sink and the write
// pump then drops the connection.
type Sink struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

func NewSink(bufferSize int) *Sink {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Sink{frames: make(chan []byte, bufferSize)}
}

// Consume is called by the fan-out. The frame is encoded once here so that
// the write pump only moves bytes.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	data, err := event.Encode(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrConnectionClosed
	}
	select {
	case s.frames <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.closeLocked()
		return errors.ErrBackpressure
	}
}

// Frames is drained by the write pump. It is closed with the sink.
func (s *Sink) Frames() <-chan []byte {
	return s.frames
}

// Close is idempotent.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sink) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}
