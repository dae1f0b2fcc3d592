package mq

import "context"

// Message is a broker-agnostic record. The ingest dispatcher publishes the
// document ID as both key and value so all events of one document land on
// the same partition and are processed in order.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type PublishResult struct {
	Partition int32
	Offset    int64
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) (PublishResult, error)
	Close() error
}

// Handler processes one message. A non-nil error leaves the offset unmarked
// so the message is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}
