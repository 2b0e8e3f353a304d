// Package refindex maintains the bounded mapping from short reference
// tokens to pointers into stored content, and expands tokens back into
// content on demand. Tokens let prompt assembly substitute a few characters
// for whole themes, nodes or files, keeping generated text compact while
// everything stays retrievable.
package refindex

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/theme"
)

// PointerType classifies what a reference token points at.
type PointerType string

const (
	TypeTheme        PointerType = "theme"
	TypeSemanticNode PointerType = "semantic_node"
	TypeMessage      PointerType = "message"
	TypeFile         PointerType = "file"
	TypeWorkflow     PointerType = "workflow"
	TypeKanbanTask   PointerType = "kanban_task"
)

// Pointer is the stored target of a reference token.
type Pointer struct {
	Type      PointerType `json:"type"`
	TargetID  string      `json:"target_id"`
	Preview   string      `json:"preview"`
	CreatedAt time.Time   `json:"created_at"`
}

// tokenPattern matches the wire form of a reference token embedded in text.
var tokenPattern = regexp.MustCompile(`\[REF:([\w_]+)\]`)

const (
	indexRecordID = "index"
	maxSlugLen    = 24
)

// Config bounds the index.
type Config struct {
	// MaxEntries caps the number of stored pointers.
	MaxEntries int

	// PruneBuffer is how far below the cap pruning reduces the index, so the
	// index does not thrash at the limit.
	PruneBuffer int

	// PreviewLength truncates pointer previews.
	PreviewLength int
}

// DefaultConfig returns the standard index bounds.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    1000,
		PruneBuffer:   100,
		PreviewLength: 100,
	}
}

// Logger is the minimal logging surface the index needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(msg string, args ...any) {}

type indexRecord struct {
	Entries map[string]Pointer `json:"entries"`
}

// Index is the per-conversation reference index. Every mutation is written
// through to storage immediately.
type Index struct {
	conversationID string
	cfg            Config
	store          store.Store
	logger         Logger

	mu      sync.Mutex
	entries map[string]Pointer
}

// New loads the index for a conversation from storage. A missing index
// record starts empty; any other storage failure is surfaced.
func New(ctx context.Context, conversationID string, cfg Config, st store.Store, log Logger) (*Index, error) {
	if log == nil {
		log = nopLogger{}
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.PruneBuffer <= 0 || cfg.PruneBuffer >= cfg.MaxEntries {
		cfg.PruneBuffer = DefaultConfig().PruneBuffer
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = DefaultConfig().PreviewLength
	}

	idx := &Index{
		conversationID: conversationID,
		cfg:            cfg,
		store:          st,
		logger:         log,
		entries:        make(map[string]Pointer),
	}

	var rec indexRecord
	err := st.LoadRecord(ctx, conversationID, store.CategoryRefIndex, indexRecordID, &rec)
	switch {
	case err == nil:
		if rec.Entries != nil {
			idx.entries = rec.Entries
		}
	case store.IsNotFound(err):
		// first use of this conversation
	default:
		return nil, err
	}
	return idx, nil
}

// Len returns the number of stored pointers.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Get returns the pointer for a token, if present.
func (i *Index) Get(token string) (Pointer, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	ptr, ok := i.entries[normalizeToken(token)]
	return ptr, ok
}

// AddReference inserts or overwrites a token's pointer, pruning the oldest
// entries when the index exceeds its cap, then persists the index.
func (i *Index) AddReference(ctx context.Context, token string, ptr Pointer) error {
	token = normalizeToken(token)
	if ptr.CreatedAt.IsZero() {
		ptr.CreatedAt = time.Now()
	}
	ptr.Preview = truncate(ptr.Preview, i.cfg.PreviewLength)

	i.mu.Lock()
	i.entries[token] = ptr
	if len(i.entries) > i.cfg.MaxEntries {
		i.pruneLocked()
	}
	i.mu.Unlock()

	return i.persist(ctx)
}

// pruneLocked removes the oldest entries until the index holds
// MaxEntries - PruneBuffer pointers. Equal creation times break ties by
// token, ascending, so pruning is deterministic.
func (i *Index) pruneLocked() {
	type aged struct {
		token string
		at    time.Time
	}
	all := make([]aged, 0, len(i.entries))
	for token, ptr := range i.entries {
		all = append(all, aged{token: token, at: ptr.CreatedAt})
	}
	sort.Slice(all, func(a, b int) bool {
		if !all[a].at.Equal(all[b].at) {
			return all[a].at.Before(all[b].at)
		}
		return all[a].token < all[b].token
	})

	keep := i.cfg.MaxEntries - i.cfg.PruneBuffer
	for _, entry := range all[:len(all)-keep] {
		delete(i.entries, entry.token)
	}
}

func (i *Index) persist(ctx context.Context) error {
	i.mu.Lock()
	rec := indexRecord{Entries: make(map[string]Pointer, len(i.entries))}
	for token, ptr := range i.entries {
		rec.Entries[token] = ptr
	}
	i.mu.Unlock()

	return i.store.SaveRecord(ctx, i.conversationID, store.CategoryRefIndex, indexRecordID, rec)
}

// FindTokens returns the bare identifiers of every reference token in text,
// in order of appearance.
func (i *Index) FindTokens(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, m[1])
	}
	return tokens
}

// FindMatching scores every stored pointer by word overlap between the query
// and the pointer's preview, returning up to limit tokens ordered by score
// descending. Equal scores order by token, ascending.
func (i *Index) FindMatching(query string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return nil
	}

	type scored struct {
		token string
		score int
	}

	i.mu.Lock()
	candidates := make([]scored, 0, len(i.entries))
	for token, ptr := range i.entries {
		score := overlap(queryWords, ptr.Preview)
		if score > 0 {
			candidates = append(candidates, scored{token: token, score: score})
		}
	}
	i.mu.Unlock()

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].token < candidates[b].token
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	tokens := make([]string, limit)
	for j := 0; j < limit; j++ {
		tokens[j] = candidates[j].token
	}
	return tokens
}

// Expand dereferences a token. Theme, semantic-node and file pointers
// resolve against storage; message, workflow and kanban-task pointers
// resolve to the stored preview only. An unknown token or a missing target
// yields empty content; storage failures other than not-found are surfaced.
func (i *Index) Expand(ctx context.Context, token string) (string, error) {
	ptr, ok := i.Get(token)
	if !ok {
		return "", nil
	}

	switch ptr.Type {
	case TypeTheme:
		var th theme.ConversationTheme
		if err := i.store.LoadRecord(ctx, i.conversationID, store.CategoryThemes, ptr.TargetID, &th); err != nil {
			if store.IsNotFound(err) {
				return "", nil
			}
			return "", err
		}
		return th.Content, nil

	case TypeSemanticNode:
		var node theme.SemanticNode
		if err := i.store.LoadRecord(ctx, i.conversationID, store.CategorySemanticNodes, ptr.TargetID, &node); err != nil {
			if store.IsNotFound(err) {
				return "", nil
			}
			return "", err
		}
		return node.Content, nil

	case TypeFile:
		var ref conversation.FileReference
		if err := i.store.LoadRecord(ctx, i.conversationID, store.CategoryFileRefs, ptr.TargetID, &ref); err != nil {
			if store.IsNotFound(err) {
				return "", nil
			}
			return "", err
		}
		return ref.Content, nil

	default:
		// Messages, workflows and kanban tasks live outside the record
		// store; the preview is the best available expansion.
		return ptr.Preview, nil
	}
}

// ExpandAll substitutes every reference token in text with its expansion.
// Tokens that fail to resolve remain in place. Cancellation is checked
// between token substitutions.
func (i *Index) ExpandAll(ctx context.Context, text string) (string, error) {
	return i.expandFiltered(ctx, text, nil)
}

// ExpandRelevant substitutes only the tokens among the top maxExpansions
// matches for query, leaving all other tokens compact.
func (i *Index) ExpandRelevant(ctx context.Context, text, query string, maxExpansions int) (string, error) {
	allowed := make(map[string]bool)
	for _, token := range i.FindMatching(query, maxExpansions) {
		allowed[token] = true
	}
	return i.expandFiltered(ctx, text, allowed)
}

// expandFiltered replaces tokens in order of appearance. A nil allowed set
// expands everything.
func (i *Index) expandFiltered(ctx context.Context, text string, allowed map[string]bool) (string, error) {
	locs := tokenPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		token := text[loc[2]:loc[3]]
		if allowed != nil && !allowed[token] {
			continue
		}
		content, err := i.Expand(ctx, token)
		if err != nil {
			return "", err
		}
		if content == "" {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(content)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// NewToken derives a reference token identifier from a topic label: a
// lowercase slug capped at 24 characters plus an eight-hex-character suffix.
func NewToken(label string) string {
	slug := slugify(label)
	if slug == "" {
		slug = "ref"
	}
	return slug + "_" + hexSuffix()
}

// NewFileToken derives a reference token identifier for a file pointer.
func NewFileToken() string {
	return "file_" + hexSuffix()
}

// Wire formats a token identifier into its embedded text form.
func Wire(token string) string {
	return "[REF:" + normalizeToken(token) + "]"
}

func normalizeToken(token string) string {
	if m := tokenPattern.FindStringSubmatch(token); m != nil {
		return m[1]
	}
	return token
}

func hexSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func slugify(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

func overlap(queryWords map[string]bool, preview string) int {
	score := 0
	for _, w := range strings.Fields(strings.ToLower(preview)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if queryWords[w] {
			score++
		}
	}
	return score
}
