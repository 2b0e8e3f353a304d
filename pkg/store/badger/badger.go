// Package badger provides a Badger-backed implementation of the store
// contract.
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos/mnemos/pkg/store"
)

var tracer = otel.Tracer("github.com/mnemos/mnemos/pkg/store/badger")

// Config holds configuration for the Badger store.
type Config struct {
	Path             string
	SyncWrites       bool
	ValueLogFileSize int64
	InMemory         bool
}

// Store implements store.Store using Badger. Keys follow the layout
// conv:{conversationID}:{category}:{recordID}.
type Store struct {
	db *badgerdb.DB
}

// New opens a Badger-backed store.
func New(cfg *Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, &store.StorageUnavailableError{Cause: err}
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an externally managed Badger database.
func NewWithDB(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

func recordKey(conversationID string, category store.Category, id string) []byte {
	return []byte(fmt.Sprintf("conv:%s:%s:%s", conversationID, category, id))
}

func categoryPrefix(conversationID string, category store.Category) []byte {
	return []byte(fmt.Sprintf("conv:%s:%s:", conversationID, category))
}

func conversationPrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:", conversationID))
}

// SaveRecord persists value as JSON.
func (s *Store) SaveRecord(ctx context.Context, conversationID string, category store.Category, id string, value any) error {
	_, span := s.startSpan(ctx, "SaveRecord", conversationID, category)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		return &store.SerializationError{Operation: "marshal", Cause: err}
	}
	if err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(recordKey(conversationID, category, id), data)
	}); err != nil {
		return &store.StorageUnavailableError{Cause: err}
	}
	return nil
}

// LoadRecord decodes the record into out.
func (s *Store) LoadRecord(ctx context.Context, conversationID string, category store.Category, id string, out any) error {
	_, span := s.startSpan(ctx, "LoadRecord", conversationID, category)
	defer span.End()

	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(recordKey(conversationID, category, id))
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return &store.NotFoundError{Category: category, ID: id}
			}
			return &store.StorageUnavailableError{Cause: err}
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, out); err != nil {
				return &store.SerializationError{Operation: "unmarshal", Cause: err}
			}
			return nil
		})
	})
	return err
}

// ListRecords returns the raw JSON of every record in a category.
func (s *Store) ListRecords(ctx context.Context, conversationID string, category store.Category) ([][]byte, error) {
	_, span := s.startSpan(ctx, "ListRecords", conversationID, category)
	defer span.End()

	var out [][]byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = categoryPrefix(conversationID, category)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, val)
		}
		return nil
	})
	if err != nil {
		return nil, &store.StorageUnavailableError{Cause: err}
	}
	return out, nil
}

// DeleteRecord removes one record; missing records are ignored.
func (s *Store) DeleteRecord(ctx context.Context, conversationID string, category store.Category, id string) error {
	_, span := s.startSpan(ctx, "DeleteRecord", conversationID, category)
	defer span.End()

	if err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(recordKey(conversationID, category, id))
	}); err != nil {
		return &store.StorageUnavailableError{Cause: err}
	}
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
	_, span := s.startSpan(ctx, "StorageSize", conversationID, "")
	defer span.End()

	var size int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = conversationPrefix(conversationID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			size += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return 0, &store.StorageUnavailableError{Cause: err}
	}
	return size, nil
}

// TotalSize returns the total stored bytes across all conversations.
func (s *Store) TotalSize(ctx context.Context) (int64, error) {
	_, span := s.startSpan(ctx, "TotalSize", "", "")
	defer span.End()

	var size int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte("conv:")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			size += int64(len(item.Key())) + item.ValueSize()
		}
		return nil
	})
	if err != nil {
		return 0, &store.StorageUnavailableError{Cause: err}
	}
	return size, nil
}

// DeleteConversation removes every record for a conversation.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	_, span := s.startSpan(ctx, "DeleteConversation", conversationID, "")
	defer span.End()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = conversationPrefix(conversationID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &store.StorageUnavailableError{Cause: err}
	}
	return nil
}

// Close runs a best-effort value-log GC pass and closes the database.
func (s *Store) Close() error {
	_ = s.db.RunValueLogGC(0.5)
	return s.db.Close()
}

func (s *Store) startSpan(ctx context.Context, op, conversationID string, category store.Category) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "store."+op,
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
		),
	)
	if category != "" {
		span.SetAttributes(attribute.String("store.category", string(category)))
	}
	return ctx, span
}
