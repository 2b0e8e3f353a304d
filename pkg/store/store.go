// Package store defines the persistence contract consumed by the context
// engine: conversation-scoped, category-and-identity-keyed records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Category is a record category. One record type is stored per category.
type Category string

const (
	CategoryMetadata      Category = "metadata"
	CategoryThemes        Category = "themes"
	CategorySemanticNodes Category = "semantic_nodes"
	CategoryGraph         Category = "graph"
	CategoryCompressed    Category = "compressed_context"
	CategoryFileRefs      Category = "file_refs"
	CategoryRefIndex      Category = "ref_index"
)

// tokenCategories are the categories whose content counts toward the
// stored-token estimate.
var tokenCategories = []Category{
	CategoryThemes,
	CategorySemanticNodes,
	CategoryCompressed,
	CategoryFileRefs,
}

// TokenCategories returns the categories whose content counts toward the
// stored-token estimate.
func TokenCategories() []Category {
	return tokenCategories
}

// charsPerToken is the crude character-to-token ratio used for estimates.
const charsPerToken = 4

// Store is the storage collaborator contract. Implementations persist
// records as JSON and surface I/O failures explicitly; they never silently
// treat a failed load as "empty".
type Store interface {
	// SaveRecord persists value under (conversation, category, id),
	// overwriting any existing record.
	SaveRecord(ctx context.Context, conversationID string, category Category, id string, value any) error

	// LoadRecord decodes the record into out. A missing record returns a
	// NotFoundError.
	LoadRecord(ctx context.Context, conversationID string, category Category, id string, out any) error

	// ListRecords returns the raw JSON of every record in a category.
	ListRecords(ctx context.Context, conversationID string, category Category) ([][]byte, error)

	// DeleteRecord removes one record. Deleting a missing record is not an
	// error.
	DeleteRecord(ctx context.Context, conversationID string, category Category, id string) error

	// EstimateTokens estimates total stored tokens for a conversation:
	// content length over four across themes, semantic nodes, compressed
	// context and file content.
	EstimateTokens(ctx context.Context, conversationID string) (int, error)

	// StorageSize returns the total stored bytes for a conversation.
	StorageSize(ctx context.Context, conversationID string) (int64, error)

	// TotalSize returns the total stored bytes across all conversations.
	TotalSize(ctx context.Context) (int64, error)

	// DeleteConversation removes every record for a conversation.
	DeleteConversation(ctx context.Context, conversationID string) error

	// Close releases the backing resources.
	Close() error
}

// NotFoundError indicates that the requested record was not found.
type NotFoundError struct {
	Category Category
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s record not found: %s", e.Category, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("store: storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a failure encoding or decoding a record.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("store: serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// contentRecord is the minimal shape used to read content lengths for the
// token estimate without knowing each category's full record type.
type contentRecord struct {
	Content string `json:"content"`
}

// CountContentTokens sums the content lengths of raw JSON records, divided
// by the character-to-token ratio. Records without a content field count as
// zero.
func CountContentTokens(records [][]byte) int {
	total := 0
	for _, raw := range records {
		var rec contentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		total += len(rec.Content) / charsPerToken
	}
	return total
}
