// Package broadcast carries the fire-and-forget "something changed" signal
// between clients sharing a store. Delivery is best-effort and never replayed.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ChannelName = "walltok_cloud_sync"
	SyncUpdate  = "SYNC_UPDATE"
)

type Message struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Store     string `json:"store,omitempty"`
	Revision  uint64 `json:"revision,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// NewSyncUpdate announces that store reached revision.
func NewSyncUpdate(store string, revision uint64) Message {
	return Message{
		Type:      SyncUpdate,
		Timestamp: time.Now().UnixMilli(),
		Store:     store,
		Revision:  revision,
	}
}

func (m Message) IsSyncUpdate() bool {
	return m.Type == SyncUpdate
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("malformed sync message: %w", err)
	}

	return m, nil
}

// Channel is one endpoint on the bus. Subscribers never receive messages
// published through their own endpoint.
type Channel interface {
	Publish(ctx context.Context, m Message) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}
