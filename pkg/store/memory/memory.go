// Package memory provides an in-process implementation of the store
// contract, used for tests and single-shot tooling where persistence is
// unnecessary.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/mnemos/mnemos/pkg/store"
)

type recordKey struct {
	conversationID string
	category       store.Category
	id             string
}

// Store keeps records in a map guarded by a read-write mutex. Records are
// stored as marshalled JSON so load/list semantics match disk-backed
// implementations exactly.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[recordKey][]byte)}
}

// SaveRecord persists value as JSON.
func (s *Store) SaveRecord(ctx context.Context, conversationID string, category store.Category, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &store.SerializationError{Operation: "marshal", Cause: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{conversationID, category, id}] = data
	return nil
}

// LoadRecord decodes the record into out.
func (s *Store) LoadRecord(ctx context.Context, conversationID string, category store.Category, id string, out any) error {
	s.mu.RLock()
	data, ok := s.records[recordKey{conversationID, category, id}]
	s.mu.RUnlock()
	if !ok {
		return &store.NotFoundError{Category: category, ID: id}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &store.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return nil
}

// ListRecords returns the raw JSON of every record in a category, ordered by
// record id for deterministic iteration.
func (s *Store) ListRecords(ctx context.Context, conversationID string, category store.Category) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for key := range s.records {
		if key.conversationID == conversationID && key.category == category {
			ids = append(ids, key.id)
		}
	}
	sort.Strings(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		data := s.records[recordKey{conversationID, category, id}]
		cp := make([]byte, len(data))
		copy(cp, data)
		out = append(out, cp)
	}
	return out, nil
}

// DeleteRecord removes one record; missing records are ignored.
func (s *Store) DeleteRecord(ctx context.Context, conversationID string, category store.Category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{conversationID, category, id})
	return nil
}

// EstimateTokens sums record content length over four across the
// token-bearing categories.
func (s *Store) EstimateTokens(ctx context.Context, conversationID string) (int, error) {
	total := 0
	for _, category := range store.TokenCategories() {
		records, err := s.ListRecords(ctx, conversationID, category)
		if err != nil {
			return 0, err
		}
		total += store.CountContentTokens(records)
	}
	return total, nil
}

// StorageSize returns the total stored bytes for a conversation.
func (s *Store) StorageSize(ctx context.Context, conversationID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size int64
	for key, data := range s.records {
		if key.conversationID == conversationID {
			size += int64(len(key.id)) + int64(len(data))
		}
	}
	return size, nil
}

// TotalSize returns the total stored bytes across all conversations.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size int64
	for key, data := range s.records {
		size += int64(len(key.id)) + int64(len(data))
	}
	return size, nil
}

// DeleteConversation removes every record for a conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.records {
		if key.conversationID == conversationID {
			delete(s.records, key)
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
