// Package budget computes the token budget available to a model and reports
// usage against a much larger "virtual" limit derived from everything a
// conversation has stored. The virtual figure is what users see: it never
// drops below a fixed floor, and never understates what is retrievable.
package budget

import (
	"context"
	"strings"

	"github.com/mnemos/mnemos/pkg/store"
)

// VirtualFloor is the minimum user-facing context figure in tokens.
const VirtualFloor = 280_000

// fallbackLimit applies when no model heuristic matches.
const fallbackLimit = 8_000

// modelRule maps a model-identifier substring to a context-window ceiling.
// Rules are ordered: specific families must precede generic ones.
type modelRule struct {
	substring string
	limit     int
}

var modelRules = []modelRule{
	{"claude-3-5", 200_000},
	{"claude-3", 200_000},
	{"claude", 200_000},
	{"gpt-4o", 128_000},
	{"gpt-4-turbo", 128_000},
	{"gpt-4-32k", 32_768},
	{"gpt-4", 8_192},
	{"gpt-3.5-turbo-16k", 16_385},
	{"gpt-3.5", 4_096},
	{"gemini-1.5", 1_000_000},
	{"gemini", 32_768},
	{"mistral", 32_768},
	{"mixtral", 32_768},
	{"llama-3", 8_192},
	{"llama", 4_096},
}

// ActualLimitForModel maps a model identifier to its context-window token
// ceiling by ordered substring matching, falling back to a conservative
// default for unknown models.
func ActualLimitForModel(modelID string) int {
	id := strings.ToLower(modelID)
	for _, rule := range modelRules {
		if strings.Contains(id, rule.substring) {
			return rule.limit
		}
	}
	return fallbackLimit
}

// UsageLevel buckets a usage percentage for display.
type UsageLevel string

const (
	UsageLow      UsageLevel = "low"
	UsageMedium   UsageLevel = "medium"
	UsageHigh     UsageLevel = "high"
	UsageCritical UsageLevel = "critical"
)

// levelFor maps a percentage to its display level.
func levelFor(pct float64) UsageLevel {
	switch {
	case pct < 50:
		return UsageLow
	case pct < 75:
		return UsageMedium
	case pct < 90:
		return UsageHigh
	default:
		return UsageCritical
	}
}

// Display is the user-facing context report for one conversation and model.
type Display struct {
	ModelID         string     `json:"model_id"`
	ActualLimit     int        `json:"actual_limit"`
	VirtualLimit    int        `json:"virtual_limit"`
	StoredTokens    int        `json:"stored_tokens"`
	UsagePercentage float64    `json:"usage_percentage"`
	UsageLevel      UsageLevel `json:"usage_level"`
}

// ForModel computes the virtual context display for a conversation. The
// virtual limit is the larger of the floor and the stored total, so the
// figure never shrinks below what is actually retrievable.
func ForModel(ctx context.Context, st store.Store, conversationID, modelID string) (*Display, error) {
	stored, err := st.EstimateTokens(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	virtualLimit := VirtualFloor
	if stored > virtualLimit {
		virtualLimit = stored
	}

	pct := float64(stored) / float64(virtualLimit) * 100

	return &Display{
		ModelID:         modelID,
		ActualLimit:     ActualLimitForModel(modelID),
		VirtualLimit:    virtualLimit,
		StoredTokens:    stored,
		UsagePercentage: pct,
		UsageLevel:      levelFor(pct),
	}, nil
}

// Bucket names one slice of a prompt-assembly budget.
type Bucket string

const (
	BucketSystemPrompt Bucket = "system_prompt"
	BucketHistory      Bucket = "history"
	BucketRetrieval    Bucket = "retrieval"
	BucketFileContext  Bucket = "file_context"
	BucketReserve      Bucket = "reserve"
)

// bucketShares are the default percentage allocations per bucket.
var bucketShares = map[Bucket]int{
	BucketSystemPrompt: 10,
	BucketHistory:      25,
	BucketRetrieval:    30,
	BucketFileContext:  25,
	BucketReserve:      10,
}

// Budget partitions a total token count into percentage-based buckets and
// tracks consumption per bucket during prompt assembly. Not safe for
// concurrent use; one Budget belongs to one assembly pass.
type Budget struct {
	total      int
	allocation map[Bucket]int
	used       map[Bucket]int
}

// NewBudget partitions total across the default bucket shares.
func NewBudget(total int) *Budget {
	if total < 0 {
		total = 0
	}
	allocation := make(map[Bucket]int, len(bucketShares))
	for bucket, share := range bucketShares {
		allocation[bucket] = total * share / 100
	}
	return &Budget{
		total:      total,
		allocation: allocation,
		used:       make(map[Bucket]int, len(bucketShares)),
	}
}

// Total returns the full token count the budget partitions.
func (b *Budget) Total() int {
	return b.total
}

// Allocation returns the token allocation for a bucket.
func (b *Budget) Allocation(bucket Bucket) int {
	return b.allocation[bucket]
}

// Fits reports whether tokens more would still fit in the bucket.
func (b *Budget) Fits(bucket Bucket, tokens int) bool {
	return b.used[bucket]+tokens <= b.allocation[bucket]
}

// Remaining returns the unconsumed tokens in a bucket.
func (b *Budget) Remaining(bucket Bucket) int {
	left := b.allocation[bucket] - b.used[bucket]
	if left < 0 {
		return 0
	}
	return left
}

// Consume records usage against a bucket if it fits, reporting whether it
// did. Content that does not fit is the caller's to drop or compress.
func (b *Budget) Consume(bucket Bucket, tokens int) bool {
	if !b.Fits(bucket, tokens) {
		return false
	}
	b.used[bucket] += tokens
	return true
}
