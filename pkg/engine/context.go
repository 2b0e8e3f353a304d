package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnemos/mnemos/pkg/budget"
	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/theme"
)

// maxRelevantExpansions caps reference expansion during prompt assembly.
const maxRelevantExpansions = 3

// ContextBundle is the assembled, budget-constrained context for one query.
type ContextBundle struct {
	// Display reports virtual and actual context usage.
	Display *budget.Display `json:"display"`

	// Recent is the tail of the message history that fit the history bucket.
	Recent []conversation.Message `json:"recent"`

	// Themes are the stored themes most similar to the query that fit the
	// retrieval bucket, most similar first.
	Themes []*theme.ConversationTheme `json:"themes"`

	// FileContext holds the stored-file chunks most similar to the query
	// that fit the file-context bucket.
	FileContext []FileChunk `json:"file_context"`

	// Text is the assembled context, reference tokens expanded where
	// relevant to the query.
	Text string `json:"text"`
}

// FileChunk is one slice of a stored file selected for the context.
type FileChunk struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// BuildContext assembles the context visible to a model for one query:
// recent history, the stored themes most similar to the query and the
// most relevant stored-file chunks, each capped by its budget bucket,
// with query-relevant reference tokens expanded.
func (e *Engine) BuildContext(ctx context.Context, query, modelID string) (*ContextBundle, error) {
	display, err := budget.ForModel(ctx, e.store, e.conversationID, modelID)
	if err != nil {
		return nil, fmt.Errorf("engine: compute budget: %w", err)
	}
	b := budget.NewBudget(display.ActualLimit)

	e.mu.Lock()
	history := make([]conversation.Message, len(e.messages))
	copy(history, e.messages)
	e.mu.Unlock()

	bundle := &ContextBundle{Display: display}

	// Newest history first until the bucket is full, then restore order.
	for i := len(history) - 1; i >= 0; i-- {
		cost := tokenCost(history[i].Content)
		if !b.Consume(budget.BucketHistory, cost) {
			break
		}
		bundle.Recent = append([]conversation.Message{history[i]}, bundle.Recent...)
	}

	themes, err := e.rankedThemes(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, th := range themes {
		if !b.Consume(budget.BucketRetrieval, tokenCost(th.Content)) {
			break
		}
		bundle.Themes = append(bundle.Themes, th)
	}

	chunks, err := e.rankedFileChunks(ctx, query)
	if err != nil {
		return nil, err
	}
	for _, ch := range chunks {
		if !b.Consume(budget.BucketFileContext, tokenCost(ch.Text)) {
			break
		}
		bundle.FileContext = append(bundle.FileContext, ch)
	}

	text := renderBundle(bundle)
	expanded, err := e.refs.ExpandRelevant(ctx, text, query, maxRelevantExpansions)
	if err != nil {
		return nil, fmt.Errorf("engine: expand references: %w", err)
	}
	bundle.Text = expanded
	return bundle, nil
}

// Themes returns every stored theme of this conversation.
func (e *Engine) Themes(ctx context.Context) ([]*theme.ConversationTheme, error) {
	records, err := e.store.ListRecords(ctx, e.conversationID, store.CategoryThemes)
	if err != nil {
		return nil, fmt.Errorf("engine: list themes: %w", err)
	}
	themes := make([]*theme.ConversationTheme, 0, len(records))
	for _, raw := range records {
		var th theme.ConversationTheme
		if err := json.Unmarshal(raw, &th); err != nil {
			return nil, &store.SerializationError{Operation: "unmarshal theme", Cause: err}
		}
		themes = append(themes, &th)
	}
	return themes, nil
}

// SemanticNodes returns every stored semantic node of this conversation.
func (e *Engine) SemanticNodes(ctx context.Context) ([]*theme.SemanticNode, error) {
	records, err := e.store.ListRecords(ctx, e.conversationID, store.CategorySemanticNodes)
	if err != nil {
		return nil, fmt.Errorf("engine: list semantic nodes: %w", err)
	}
	nodes := make([]*theme.SemanticNode, 0, len(records))
	for _, raw := range records {
		var n theme.SemanticNode
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, &store.SerializationError{Operation: "unmarshal semantic node", Cause: err}
		}
		nodes = append(nodes, &n)
	}
	return nodes, nil
}

// BudgetDisplay reports the virtual and actual budget usage for a model.
func (e *Engine) BudgetDisplay(ctx context.Context, modelID string) (*budget.Display, error) {
	return budget.ForModel(ctx, e.store, e.conversationID, modelID)
}

// rankedThemes orders the stored themes by similarity to the query, most
// similar first.
func (e *Engine) rankedThemes(ctx context.Context, query string) ([]*theme.ConversationTheme, error) {
	themes, err := e.Themes(ctx)
	if err != nil {
		return nil, err
	}
	if len(themes) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(themes))
	for i, th := range themes {
		vectors[i] = th.Embedding
	}
	queryVec := e.embedder.Embed(query)
	matches := embedding.TopKSimilar(queryVec, vectors, len(vectors))
	ranked := make([]*theme.ConversationTheme, len(matches))
	for i, m := range matches {
		ranked[i] = themes[m.Index]
	}
	return ranked, nil
}

// rankedFileChunks splits every stored file into overlapping chunks and
// orders them by similarity to the query, most similar first.
func (e *Engine) rankedFileChunks(ctx context.Context, query string) ([]FileChunk, error) {
	records, err := e.store.ListRecords(ctx, e.conversationID, store.CategoryFileRefs)
	if err != nil {
		return nil, fmt.Errorf("engine: list file references: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var chunks []FileChunk
	var vectors [][]float32
	for _, raw := range records {
		var ref conversation.FileReference
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, &store.SerializationError{Operation: "unmarshal file reference", Cause: err}
		}
		for _, c := range embedding.ChunkText(ref.Content, e.cfg.ChunkSize, e.cfg.ChunkOverlap) {
			chunks = append(chunks, FileChunk{Path: ref.Path, Text: c.Text})
			vectors = append(vectors, e.embedder.Embed(c.Text))
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryVec := e.embedder.Embed(query)
	matches := embedding.TopKSimilar(queryVec, vectors, len(vectors))
	ranked := make([]FileChunk, len(matches))
	for i, m := range matches {
		ranked[i] = chunks[m.Index]
	}
	return ranked, nil
}

func renderBundle(bundle *ContextBundle) string {
	var b strings.Builder
	if len(bundle.Themes) > 0 {
		b.WriteString("Relevant context:\n")
		for _, th := range bundle.Themes {
			b.WriteString("- ")
			b.WriteString(th.Topic)
			b.WriteString(": ")
			b.WriteString(th.Content)
			b.WriteString("\n")
		}
	}
	if len(bundle.FileContext) > 0 {
		b.WriteString("File context:\n")
		for _, ch := range bundle.FileContext {
			b.WriteString(ch.Path)
			b.WriteString(": ")
			b.WriteString(ch.Text)
			b.WriteString("\n")
		}
	}
	if len(bundle.Recent) > 0 {
		b.WriteString("Recent messages:\n")
		for _, m := range bundle.Recent {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func tokenCost(content string) int {
	cost := len(content) / 4
	if cost == 0 {
		cost = 1
	}
	return cost
}
