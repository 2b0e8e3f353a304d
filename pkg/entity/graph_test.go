package entity

import (
	"math"
	"testing"
	"time"
)

func TestGraph_AddEntityIdempotent(t *testing.T) {
	g := NewGraph("c1", nil)

	id1 := g.AddEntity("Acme", TypeOrganization)
	id2 := g.AddEntity("acme", TypeOrganization)

	if id1 != id2 {
		t.Fatalf("expected same node, got %d and %d", id1, id2)
	}
	node, ok := g.Lookup("ACME")
	if !ok {
		t.Fatal("expected node")
	}
	if node.Mentions != 2 {
		t.Errorf("expected 2 mentions, got %d", node.Mentions)
	}
	if len(g.Nodes()) != 1 {
		t.Errorf("expected 1 node, got %d", len(g.Nodes()))
	}
}

func TestGraph_TypeUpgrade(t *testing.T) {
	g := NewGraph("c1", nil)

	g.AddEntity("billing", TypeConcept)
	g.AddEntity("billing", TypeWorkflow)

	node, _ := g.Lookup("billing")
	if node.Type != TypeWorkflow {
		t.Errorf("expected type upgrade to workflow, got %s", node.Type)
	}
}

func TestGraph_RelationshipStrengthening(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("A", TypeConcept)
	g.AddEntity("B", TypeConcept)

	var prev float64
	for i := 0; i < 12; i++ {
		g.AddRelationship("A", "B", RelMentionedWith, "")
		rels := g.Relationships()
		if len(rels) != 1 {
			t.Fatalf("expected 1 edge after %d calls, got %d", i+1, len(rels))
		}
		s := rels[0].Strength
		if s < prev {
			t.Fatalf("strength decreased: %f -> %f", prev, s)
		}
		if s > 1.0 {
			t.Fatalf("strength exceeded ceiling: %f", s)
		}
		prev = s
	}
	if math.Abs(prev-1.0) > 1e-9 {
		t.Errorf("expected strength capped at 1.0, got %f", prev)
	}
}

func TestGraph_RelationshipOrderInsensitive(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("A", TypeConcept)
	g.AddEntity("B", TypeConcept)

	g.AddRelationship("A", "B", RelMentionedWith, "")
	g.AddRelationship("B", "A", RelMentionedWith, "")

	rels := g.Relationships()
	if len(rels) != 1 {
		t.Fatalf("expected 1 edge for unordered pair, got %d", len(rels))
	}
	if rels[0].Occurrences != 2 {
		t.Errorf("expected 2 occurrences, got %d", rels[0].Occurrences)
	}
}

func TestGraph_RelationshipUnregisteredNoOp(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("A", TypeConcept)

	if ok := g.AddRelationship("A", "Ghost", RelDependsOn, ""); ok {
		t.Error("expected no-op for unregistered target")
	}
	if len(g.Relationships()) != 0 {
		t.Error("expected no edges")
	}
}

func TestGraph_ProcessMessagePairwise(t *testing.T) {
	g := NewGraph("c1", nil)

	// Three repeated capitalized entities yield three pairwise edges.
	g.ProcessMessage("Alpha met Beta and Gamma. Alpha, Beta and Gamma agreed.")

	nodes := g.Nodes()
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	rels := g.Relationships()
	if len(rels) != 3 {
		t.Fatalf("expected 3 pairwise edges, got %d", len(rels))
	}
	for _, r := range rels {
		if r.Type != RelMentionedWith {
			t.Errorf("expected mentioned_with, got %s", r.Type)
		}
	}
}

func TestGraph_Neighbors(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("A", TypeConcept)
	g.AddEntity("B", TypeConcept)
	g.AddEntity("C", TypeConcept)
	g.AddRelationship("A", "B", RelMentionedWith, "")
	g.AddRelationship("C", "A", RelDependsOn, "")

	neighbors := g.Neighbors("A")
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
}

func TestGraph_ShortestPath(t *testing.T) {
	g := NewGraph("c1", nil)
	for _, n := range []string{"A", "B", "C", "D"} {
		g.AddEntity(n, TypeConcept)
	}
	g.AddRelationship("A", "B", RelMentionedWith, "")
	g.AddRelationship("B", "C", RelMentionedWith, "")
	g.AddRelationship("C", "D", RelMentionedWith, "")

	path, err := g.ShortestPath("A", "D")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A", "B", "C", "D"}
	if len(path) != len(want) {
		t.Fatalf("expected path of %d, got %v", len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, path[i], want[i])
		}
	}

	g.AddEntity("Island", TypeConcept)
	if _, err := g.ShortestPath("A", "Island"); err != ErrNoPath {
		t.Errorf("expected ErrNoPath, got %v", err)
	}
	if _, err := g.ShortestPath("A", "Missing"); err != ErrUnknownEntity {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestGraph_StrongestRelationships(t *testing.T) {
	g := NewGraph("c1", nil)
	for _, n := range []string{"A", "B", "C"} {
		g.AddEntity(n, TypeConcept)
	}
	g.AddRelationship("A", "B", RelMentionedWith, "")
	for i := 0; i < 3; i++ {
		g.AddRelationship("B", "C", RelMentionedWith, "")
	}

	top := g.StrongestRelationships(1)
	if len(top) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(top))
	}
	if top[0].Occurrences != 3 {
		t.Errorf("expected the thrice-observed edge first, got %+v", top[0])
	}
}

func TestGraph_ApplyDecay(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("A", TypeConcept)
	g.AddEntity("B", TypeConcept)
	for i := 0; i < 8; i++ {
		g.AddRelationship("A", "B", RelMentionedWith, "")
	}

	// Rewind the clock so last-seen is ten days in the past.
	g.now = func() time.Time { return time.Now().Add(10 * 24 * time.Hour) }
	g.ApplyDecay(0.05)

	rels := g.Relationships()
	if rels[0].Strength >= 1.0 {
		t.Errorf("expected decayed strength, got %f", rels[0].Strength)
	}

	// Heavy decay still floors at the minimum.
	g.ApplyDecay(10)
	rels = g.Relationships()
	if rels[0].Strength != minStrength {
		t.Errorf("expected floor %f, got %f", minStrength, rels[0].Strength)
	}
}

func TestGraph_SnapshotRestore(t *testing.T) {
	g := NewGraph("c1", nil)
	g.AddEntity("Acme", TypeOrganization)
	g.AddEntity("Bob", TypePerson)
	g.AddRelationship("Bob", "Acme", RelAssignedTo, "onboarding")

	state := g.Snapshot()

	g2 := NewGraph("c1", nil)
	g2.Restore(state)

	if len(g2.Nodes()) != 2 || len(g2.Relationships()) != 1 {
		t.Fatalf("restore lost data: %d nodes %d edges", len(g2.Nodes()), len(g2.Relationships()))
	}
	// Restored graphs keep strengthening existing edges instead of
	// duplicating them.
	g2.AddRelationship("Acme", "Bob", RelAssignedTo, "")
	if len(g2.Relationships()) != 1 {
		t.Error("restore broke edge identity")
	}
}
