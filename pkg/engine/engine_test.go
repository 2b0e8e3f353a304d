package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/mnemos/mnemos/pkg/branch"
	"github.com/mnemos/mnemos/pkg/conversation"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/store/memory"
	"github.com/mnemos/mnemos/pkg/theme"
)

func newTestEngine(t *testing.T, conversationID string, cfg Config) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	e, err := New(context.Background(), conversationID, cfg, embedding.New(64), st, nil, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, st
}

func userMessage(content string) conversation.Message {
	return conversation.Message{Role: conversation.RoleUser, Content: content}
}

func TestEngine_ProcessMessage(t *testing.T) {
	e, st := newTestEngine(t, "conv-1", DefaultConfig())
	ctx := context.Background()

	result, err := e.ProcessMessage(ctx, userMessage("Alice asked Bob about the deployment plan, and Bob told Alice it was ready."))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Shift.Type != branch.NoShift {
		t.Errorf("short history must not shift, got %s", result.Shift.Type)
	}
	if len(result.Entities) == 0 {
		t.Error("expected entities extracted from capitalized names")
	}
	if len(e.Messages()) != 1 {
		t.Errorf("expected 1 message in history, got %d", len(e.Messages()))
	}

	// The graph is persisted after every message.
	var state struct {
		Nodes []any `json:"nodes"`
	}
	if err := st.LoadRecord(ctx, "conv-1", store.CategoryGraph, "graph", &state); err != nil {
		t.Fatalf("graph record missing after process: %v", err)
	}
}

func TestEngine_ProcessMessage_FillsIdentity(t *testing.T) {
	e, _ := newTestEngine(t, "conv-1", DefaultConfig())

	if _, err := e.ProcessMessage(context.Background(), userMessage("hello there")); err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := e.Messages()[0]
	if msg.ID == "" {
		t.Error("message id must be assigned")
	}
	if msg.ConversationID != "conv-1" {
		t.Errorf("conversation id not stamped: %q", msg.ConversationID)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("created_at must be assigned")
	}
}

func TestEngine_ThemeRefresh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThemeRefreshEvery = 3
	cfg.Themes = theme.Config{MinMessages: 3, SimilarityThreshold: 0.5, MaxClusterSize: 10}
	e, st := newTestEngine(t, "conv-1", cfg)
	ctx := context.Background()

	// Identical content keeps consecutive similarity at 1.0, so the three
	// messages form a single cluster when the refresh fires.
	const content = "Quarterly planning for the Atlas project."
	var last *ProcessResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = e.ProcessMessage(ctx, userMessage(content))
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(last.NewThemes) == 0 {
		t.Fatal("third message must trigger a theme refresh")
	}

	records, err := st.ListRecords(ctx, "conv-1", store.CategoryThemes)
	if err != nil {
		t.Fatalf("list themes: %v", err)
	}
	if len(records) == 0 {
		t.Error("themes must be persisted")
	}
	nodes, err := st.ListRecords(ctx, "conv-1", store.CategorySemanticNodes)
	if err != nil {
		t.Fatalf("list semantic nodes: %v", err)
	}
	if len(nodes) != len(records) {
		t.Errorf("expected one semantic node per theme, got %d nodes for %d themes", len(nodes), len(records))
	}
	if e.Refs().Len() == 0 {
		t.Error("theme refresh must register a reference token")
	}
}

func TestEngine_RestoreFromStore(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	embedder := embedding.New(64)

	first, err := New(ctx, "conv-1", DefaultConfig(), embedder, st, nil, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := first.ProcessMessage(ctx, userMessage("Alice discussed Kubernetes with Bob, then Alice and Bob split the followups.")); err != nil {
		t.Fatalf("process: %v", err)
	}
	wantNodes := len(first.Graph().Nodes())
	if wantNodes == 0 {
		t.Fatal("expected entities in the graph")
	}

	second, err := New(ctx, "conv-1", DefaultConfig(), embedder, st, nil, nil, nil)
	if err != nil {
		t.Fatalf("restore engine: %v", err)
	}
	if got := len(second.Graph().Nodes()); got != wantNodes {
		t.Errorf("restored graph has %d nodes, want %d", got, wantNodes)
	}
}

func TestEngine_BranchLifecycle(t *testing.T) {
	e, _ := newTestEngine(t, "conv-1", DefaultConfig())
	ctx := context.Background()

	if _, err := e.ProcessMessage(ctx, userMessage("Planning the database migration.")); err != nil {
		t.Fatalf("process: %v", err)
	}

	b, err := e.CreateBranch(ctx, "migration", "database migration")
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if active := e.ActiveBranch(); active == nil || active.ID != b.ID {
		t.Fatal("new branch must become active")
	}
	if b.Snapshot.MessageCount != 1 {
		t.Errorf("snapshot message count = %d, want 1", b.Snapshot.MessageCount)
	}

	if err := e.SwitchBranch(ctx, ""); err != nil {
		t.Fatalf("switch to main: %v", err)
	}
	if e.ActiveBranch() != nil {
		t.Error("empty id must switch back to the main line")
	}

	if err := e.MergeBranch(ctx, b.ID, "msg-final"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	branches := e.Branches()
	if len(branches) != 1 || !branches[0].Merged {
		t.Fatal("merged branch must be retained and marked merged")
	}

	// Deleting a merged branch is a no-op.
	if err := e.DeleteBranch(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(e.Branches()) != 1 {
		t.Error("merged branch must survive delete")
	}
}

func TestEngine_AddFileReference(t *testing.T) {
	e, st := newTestEngine(t, "conv-1", DefaultConfig())
	ctx := context.Background()

	token, err := e.AddFileReference(ctx, "docs/plan.md", "The plan covers three phases. Details follow.")
	if err != nil {
		t.Fatalf("add file reference: %v", err)
	}
	if !strings.HasPrefix(token, "file_") {
		t.Errorf("file token %q must carry the file prefix", token)
	}

	expanded, err := e.Refs().Expand(ctx, token)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !strings.Contains(expanded, "three phases") {
		t.Errorf("file expansion must return stored content, got %q", expanded)
	}

	refs, err := st.ListRecords(ctx, "conv-1", store.CategoryFileRefs)
	if err != nil {
		t.Fatalf("list file refs: %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("expected 1 stored file reference, got %d", len(refs))
	}
}

func TestEngine_BuildContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThemeRefreshEvery = 3
	e, _ := newTestEngine(t, "conv-1", cfg)
	ctx := context.Background()

	const content = "Review of the caching layer rollout."
	for i := 0; i < 3; i++ {
		if _, err := e.ProcessMessage(ctx, userMessage(content)); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	bundle, err := e.BuildContext(ctx, "caching layer", "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if bundle.Display.ActualLimit != 200_000 {
		t.Errorf("actual limit = %d, want 200000", bundle.Display.ActualLimit)
	}
	if bundle.Display.VirtualLimit != 280_000 {
		t.Errorf("virtual limit = %d, want 280000", bundle.Display.VirtualLimit)
	}
	if len(bundle.Recent) != 3 {
		t.Errorf("expected 3 recent messages, got %d", len(bundle.Recent))
	}
	if !strings.Contains(bundle.Text, "Recent messages:") {
		t.Error("rendered context must include the recent messages section")
	}
	if len(bundle.Themes) == 0 {
		t.Error("stored themes must be retrieved for the query")
	}
}

func TestEngine_BuildContextIncludesFileChunks(t *testing.T) {
	e, _ := newTestEngine(t, "conv-1", DefaultConfig())
	ctx := context.Background()

	if _, err := e.AddFileReference(ctx, "docs/rollout.md", "Phase one ships the canary build to staging."); err != nil {
		t.Fatalf("add file reference: %v", err)
	}
	if _, err := e.ProcessMessage(ctx, userMessage("When does the canary ship?")); err != nil {
		t.Fatalf("process: %v", err)
	}

	bundle, err := e.BuildContext(ctx, "canary build", "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(bundle.FileContext) == 0 {
		t.Fatal("stored file chunks must be selected for the query")
	}
	if bundle.FileContext[0].Path != "docs/rollout.md" {
		t.Errorf("chunk path = %q, want docs/rollout.md", bundle.FileContext[0].Path)
	}
	if !strings.Contains(bundle.Text, "File context:") {
		t.Error("rendered context must include the file context section")
	}
}

func TestRegistry_GetAndDelete(t *testing.T) {
	st := memory.New()
	reg := NewRegistry(DefaultConfig(), embedding.New(64), st, nil, nil, nil)
	ctx := context.Background()

	e1, err := reg.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e2, err := reg.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if e1 != e2 {
		t.Error("registry must reuse the engine for a conversation")
	}
	if _, err := reg.Get(ctx, ""); err == nil {
		t.Error("empty conversation id must be rejected")
	}

	if _, err := e1.ProcessMessage(ctx, userMessage("hello")); err != nil {
		t.Fatalf("process: %v", err)
	}

	if err := reg.DeleteConversation(ctx, "conv-1"); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, ok := reg.Peek("conv-1"); ok {
		t.Error("deleted conversation must not stay loaded")
	}
	records, err := st.ListRecords(ctx, "conv-1", store.CategoryGraph)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Error("stored records must be removed with the conversation")
	}
}
