// Package session persists conversation transcripts between invocations.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsgate/opsgate/internal/provider"
	"github.com/opsgate/opsgate/internal/store"
)

// defaultTTL bounds how long an idle conversation is kept. Each append
// refreshes it.
const defaultTTL = 7 * 24 * time.Hour

// Store keeps transcripts as JSON message lists on the key-value store.
type Store struct {
	kv  store.Store
	ttl time.Duration
}

func New(kv store.Store) *Store {
	return &Store{kv: kv, ttl: defaultTTL}
}

func conversationKey(id string) string {
	return "conversation:" + id
}

// Append adds messages to the end of a conversation transcript.
func (s *Store) Append(ctx context.Context, conversationID string, msgs ...provider.Message) error {
	key := conversationKey(conversationID)
	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", conversationID, err)
		}
		if err := s.kv.AppendToList(ctx, key, raw, s.ttl); err != nil {
			return fmt.Errorf("append to conversation %s: %w", conversationID, err)
		}
	}
	return nil
}

// History returns the full transcript, oldest first. A conversation that
// does not exist (or expired) is an empty transcript, not an error.
func (s *Store) History(ctx context.Context, conversationID string) ([]provider.Message, error) {
	raws, err := s.kv.RangeOfList(ctx, conversationKey(conversationID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	msgs := make([]provider.Message, 0, len(raws))
	for _, raw := range raws {
		var msg provider.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode message in conversation %s: %w", conversationID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Replace swaps the stored transcript for the given one. Used after an
// agent turn, which returns the full transcript including its own additions.
func (s *Store) Replace(ctx context.Context, conversationID string, msgs []provider.Message) error {
	if err := s.Reset(ctx, conversationID); err != nil {
		return err
	}
	return s.Append(ctx, conversationID, msgs...)
}

// Reset deletes a conversation.
func (s *Store) Reset(ctx context.Context, conversationID string) error {
	if err := s.kv.Delete(ctx, conversationKey(conversationID)); err != nil {
		return fmt.Errorf("reset conversation %s: %w", conversationID, err)
	}
	return nil
}
