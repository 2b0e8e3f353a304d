package refindex

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/store/memory"
	"github.com/mnemos/mnemos/pkg/theme"
)

func newTestIndex(t *testing.T, st store.Store, cfg Config) *Index {
	t.Helper()
	idx, err := New(context.Background(), "c1", cfg, st, nil)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return idx
}

func TestExpandAll_ThemeContentSubstitutedVerbatim(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	th := theme.ConversationTheme{
		ID:      "t1",
		Topic:   "q4 budget review",
		Content: "Q4 budget review",
	}
	if err := st.SaveRecord(ctx, "c1", store.CategoryThemes, th.ID, th); err != nil {
		t.Fatalf("save theme: %v", err)
	}

	idx := newTestIndex(t, st, DefaultConfig())
	token := "q4_budget_review_abcd1234"
	if err := idx.AddReference(ctx, token, Pointer{Type: TypeTheme, TargetID: "t1", Preview: "Q4 budget review"}); err != nil {
		t.Fatalf("add reference: %v", err)
	}

	in := "See [REF:q4_budget_review_abcd1234] for details."
	out, err := idx.ExpandAll(ctx, in)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := "See Q4 budget review for details."
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestExpandAll_UnresolvedTokenLeftInPlace(t *testing.T) {
	st := memory.New()
	idx := newTestIndex(t, st, DefaultConfig())

	in := "Unknown [REF:nothing_deadbeef] stays."
	out, err := idx.ExpandAll(context.Background(), in)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if out != in {
		t.Errorf("unresolved token must stay: got %q", out)
	}
}

func TestExpand_MessagePointerUsesPreview(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	idx := newTestIndex(t, st, DefaultConfig())

	idx.AddReference(ctx, "msg_00000001", Pointer{Type: TypeMessage, TargetID: "m1", Preview: "we agreed on Friday"})

	got, err := idx.Expand(ctx, "msg_00000001")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != "we agreed on Friday" {
		t.Errorf("message expansion must be the preview, got %q", got)
	}
}

func TestFindTokens(t *testing.T) {
	st := memory.New()
	idx := newTestIndex(t, st, DefaultConfig())

	tokens := idx.FindTokens("a [REF:one_11111111] b [REF:two_22222222] c")
	if len(tokens) != 2 || tokens[0] != "one_11111111" || tokens[1] != "two_22222222" {
		t.Errorf("unexpected tokens: %v", tokens)
	}
	if got := idx.FindTokens("no tokens here"); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestFindMatching_ScoresByWordOverlapWithTokenTieBreak(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	idx := newTestIndex(t, st, DefaultConfig())

	idx.AddReference(ctx, "b_token", Pointer{Type: TypeMessage, Preview: "budget review meeting"})
	idx.AddReference(ctx, "a_token", Pointer{Type: TypeMessage, Preview: "budget review meeting"})
	idx.AddReference(ctx, "c_token", Pointer{Type: TypeMessage, Preview: "pasta recipe"})

	got := idx.FindMatching("quarterly budget review", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	// Equal scores order lexicographically by token.
	if got[0] != "a_token" || got[1] != "b_token" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestAddReference_PrunesOldestToBufferedSize(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	cfg := Config{MaxEntries: 20, PruneBuffer: 5, PreviewLength: 100}
	idx := newTestIndex(t, st, cfg)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for n := 0; n < 21; n++ {
		ptr := Pointer{
			Type:      TypeMessage,
			Preview:   "entry",
			CreatedAt: base.Add(time.Duration(n) * time.Minute),
		}
		if err := idx.AddReference(ctx, fmt.Sprintf("tok_%02d", n), ptr); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if idx.Len() != 15 {
		t.Fatalf("expected prune to max-buffer (15), got %d", idx.Len())
	}
	// The oldest entries are gone, the newest survive.
	if _, ok := idx.Get("tok_00"); ok {
		t.Error("oldest entry should have been pruned")
	}
	if _, ok := idx.Get("tok_20"); !ok {
		t.Error("newest entry must survive pruning")
	}
}

func TestIndexPersistsAcrossLoads(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	idx := newTestIndex(t, st, DefaultConfig())
	idx.AddReference(ctx, "kept_12345678", Pointer{Type: TypeMessage, Preview: "kept"})

	reloaded := newTestIndex(t, st, DefaultConfig())
	if _, ok := reloaded.Get("kept_12345678"); !ok {
		t.Error("reference must survive reload from storage")
	}
}

func TestExpandRelevant_LimitsExpansions(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	idx := newTestIndex(t, st, DefaultConfig())

	idx.AddReference(ctx, "budget_11111111", Pointer{Type: TypeMessage, Preview: "budget numbers"})
	idx.AddReference(ctx, "pasta_22222222", Pointer{Type: TypeMessage, Preview: "pasta recipe"})

	in := "[REF:budget_11111111] and [REF:pasta_22222222]"
	out, err := idx.ExpandRelevant(ctx, in, "budget planning", 1)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !strings.Contains(out, "budget numbers") {
		t.Errorf("relevant token should expand: %q", out)
	}
	if !strings.Contains(out, "[REF:pasta_22222222]") {
		t.Errorf("irrelevant token must stay compact: %q", out)
	}
}

func TestNewTokenShape(t *testing.T) {
	token := NewToken("Q4 Budget Review & Planning Session")
	parts := strings.Split(token, "_")
	suffix := parts[len(parts)-1]
	if len(suffix) != 8 {
		t.Errorf("expected 8-hex suffix, got %q in %q", suffix, token)
	}
	slug := strings.TrimSuffix(token, "_"+suffix)
	if len(slug) > 24 {
		t.Errorf("slug exceeds 24 chars: %q", slug)
	}
	for _, r := range slug {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			t.Errorf("slug contains invalid rune %q: %q", r, slug)
		}
	}

	if !strings.HasPrefix(NewFileToken(), "file_") {
		t.Error("file tokens carry the file_ prefix")
	}
	if got := Wire("abc_12345678"); got != "[REF:abc_12345678]" {
		t.Errorf("unexpected wire form %q", got)
	}
}
