package messaging

import "time"

// Message is a single payload received by a subscriber, stamped on arrival.
// Messages are never mutated after they are handed to observers.
type Message struct {
	Seq        uint64        `json:"seq"`
	Topic      string        `json:"topic,omitempty"`
	ReceivedAt time.Time     `json:"received_at"`
	Elapsed    time.Duration `json:"elapsed"`  // since the first message this subscriber received
	Interval   time.Duration `json:"interval"` // since the previous message
	Payload    string        `json:"payload"`
}

// Envelope is what a transport hands to the subscriber before decoding.
type Envelope struct {
	Topic   string
	Payload []byte
}

// Record is an envelope persisted by a store.
type Record struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Topic is the on-disk representation of a named channel of records.
type Topic struct {
	Name      string    `json:"name"`
	Records   []Record  `json:"records"`
	UpdatedAt time.Time `json:"updated_at"`
}
