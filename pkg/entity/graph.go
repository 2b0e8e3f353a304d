package entity

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// graphLogger is the minimal logger interface used by the graph.
type graphLogger interface {
	Warn(msg string, args ...any)
}

type nopGraphLogger struct{}

func (nopGraphLogger) Warn(msg string, args ...any) {}

// edgeKey identifies an edge by its unordered node pair and type.
type edgeKey struct {
	lo, hi int
	typ    RelationType
}

func newEdgeKey(a, b int, typ RelationType) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{lo: a, hi: b, typ: typ}
}

// Graph is the entity-relationship graph for one conversation. Nodes and
// edges live in growable arenas and reference each other by stable integer
// IDs, so the graph serializes directly and reads can work on copies.
//
// The graph is safe for concurrent use, but message processing must be
// applied in arrival order per conversation.
type Graph struct {
	mu sync.RWMutex

	conversationID string
	nodes          []*Node
	byName         map[string]int
	edges          []*Relationship
	edgeIndex      map[edgeKey]int

	now    func() time.Time
	logger graphLogger
}

// NewGraph creates an empty graph for a conversation.
func NewGraph(conversationID string, log graphLogger) *Graph {
	if log == nil {
		log = nopGraphLogger{}
	}
	return &Graph{
		conversationID: conversationID,
		byName:         make(map[string]int),
		edgeIndex:      make(map[edgeKey]int),
		now:            time.Now,
		logger:         log,
	}
}

// ConversationID returns the owning conversation.
func (g *Graph) ConversationID() string {
	return g.conversationID
}

// AddEntity registers an entity, idempotent by case-insensitive name. A
// repeat call increments the mention count and advances last-seen instead of
// creating a duplicate node. Returns the node's stable ID.
func (g *Graph) AddEntity(name string, typ Type) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEntityLocked(name, typ)
}

func (g *Graph) addEntityLocked(name string, typ Type) int {
	key := strings.ToLower(strings.TrimSpace(name))
	now := g.now()

	if id, ok := g.byName[key]; ok {
		node := g.nodes[id]
		node.Mentions++
		node.LastSeen = now
		// A more specific type observed later upgrades "unknown"/"concept".
		if (node.Type == TypeUnknown || node.Type == TypeConcept) && typ != TypeUnknown && typ != TypeConcept {
			node.Type = typ
		}
		return id
	}

	id := len(g.nodes)
	g.nodes = append(g.nodes, &Node{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Type:      typ,
		FirstSeen: now,
		LastSeen:  now,
		Mentions:  1,
	})
	g.byName[key] = id
	return id
}

// Lookup returns the node registered under name, if any.
func (g *Graph) Lookup(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Node{}, false
	}
	return *g.nodes[id], true
}

// AddRelationship records a relationship between two registered entities.
// The pair is order-insensitive: repeat calls strengthen the existing edge
// instead of duplicating it. Unregistered entities make this a logged no-op.
func (g *Graph) AddRelationship(source, target string, typ RelationType, context string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	srcID, okS := g.byName[strings.ToLower(strings.TrimSpace(source))]
	tgtID, okT := g.byName[strings.ToLower(strings.TrimSpace(target))]
	if !okS || !okT {
		g.logger.Warn("entity: relationship references unregistered entity",
			"conversation_id", g.conversationID,
			"source", source,
			"target", target,
		)
		return false
	}
	if srcID == tgtID {
		return false
	}

	now := g.now()
	key := newEdgeKey(srcID, tgtID, typ)
	if idx, ok := g.edgeIndex[key]; ok {
		edge := g.edges[idx]
		edge.Occurrences++
		edge.LastSeen = now
		edge.Strength += strengthStep
		if edge.Strength > 1.0 {
			edge.Strength = 1.0
		}
		if context != "" {
			edge.Context = context
		}
		return true
	}

	g.edges = append(g.edges, &Relationship{
		SourceID:    srcID,
		TargetID:    tgtID,
		Type:        typ,
		Strength:    initialStrength,
		Occurrences: 1,
		FirstSeen:   now,
		LastSeen:    now,
		Context:     context,
	})
	g.edgeIndex[key] = len(g.edges) - 1
	return true
}

// ProcessMessage extracts entities from a message and links every pairwise
// combination with a "mentioned_with" relationship. Quadratic in the number
// of entities per message, which stays small in practice.
func (g *Graph) ProcessMessage(text string) []Node {
	extracted := ExtractEntities(text)
	if len(extracted) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int, len(extracted))
	for i, ex := range extracted {
		ids[i] = g.addEntityLocked(ex.Name, ex.Type)
	}

	now := g.now()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] == ids[j] {
				continue
			}
			key := newEdgeKey(ids[i], ids[j], RelMentionedWith)
			if idx, ok := g.edgeIndex[key]; ok {
				edge := g.edges[idx]
				edge.Occurrences++
				edge.LastSeen = now
				edge.Strength += strengthStep
				if edge.Strength > 1.0 {
					edge.Strength = 1.0
				}
				continue
			}
			g.edges = append(g.edges, &Relationship{
				SourceID:    ids[i],
				TargetID:    ids[j],
				Type:        RelMentionedWith,
				Strength:    initialStrength,
				Occurrences: 1,
				FirstSeen:   now,
				LastSeen:    now,
			})
			g.edgeIndex[key] = len(g.edges) - 1
		}
	}

	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = *g.nodes[id]
	}
	return out
}

// Neighbors returns copies of all nodes sharing an edge with name.
func (g *Graph) Neighbors(name string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}

	seen := make(map[int]bool)
	var out []Node
	for _, e := range g.edges {
		other := -1
		if e.SourceID == id {
			other = e.TargetID
		} else if e.TargetID == id {
			other = e.SourceID
		}
		if other >= 0 && !seen[other] {
			seen[other] = true
			out = append(out, *g.nodes[other])
		}
	}
	return out
}

// ShortestPath runs a breadth-first search between two entities and returns
// the node names along the path, endpoints included.
func (g *Graph) ShortestPath(from, to string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	src, okS := g.byName[strings.ToLower(strings.TrimSpace(from))]
	dst, okT := g.byName[strings.ToLower(strings.TrimSpace(to))]
	if !okS || !okT {
		return nil, ErrUnknownEntity
	}
	if src == dst {
		return []string{g.nodes[src].Name}, nil
	}

	adj := make(map[int][]int)
	for _, e := range g.edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		adj[e.TargetID] = append(adj[e.TargetID], e.SourceID)
	}

	prev := map[int]int{src: src}
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = cur
			if next == dst {
				var path []string
				for at := dst; ; at = prev[at] {
					path = append([]string{g.nodes[at].Name}, path...)
					if at == src {
						return path, nil
					}
				}
			}
			queue = append(queue, next)
		}
	}
	return nil, ErrNoPath
}

// StrongestRelationships returns up to limit edges ranked by descending
// strength, ties broken by occurrence count then arena order.
func (g *Graph) StrongestRelationships(limit int) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Relationship, len(g.edges))
	for i, e := range g.edges {
		out[i] = *e
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Occurrences > out[j].Occurrences
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// ApplyDecay reduces every edge's strength proportionally to elapsed days
// since its last occurrence, floored at minStrength. Intended to run
// periodically, not per message.
func (g *Graph) ApplyDecay(perDay float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for _, e := range g.edges {
		days := now.Sub(e.LastSeen).Hours() / 24
		if days <= 0 {
			continue
		}
		e.Strength -= perDay * days
		if e.Strength < minStrength {
			e.Strength = minStrength
		}
	}
}

// EntityName resolves a node ID to its display name.
func (g *Graph) EntityName(id int) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id < 0 || id >= len(g.nodes) {
		return ""
	}
	return g.nodes[id].Name
}

// Nodes returns copies of all nodes in arena order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = *n
	}
	return out
}

// Relationships returns copies of all edges in arena order.
func (g *Graph) Relationships() []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Relationship, len(g.edges))
	for i, e := range g.edges {
		out[i] = *e
	}
	return out
}

// State is the serializable snapshot of a graph.
type State struct {
	ConversationID string         `json:"conversation_id"`
	Nodes          []Node         `json:"nodes"`
	Edges          []Relationship `json:"edges"`
}

// Snapshot captures the graph for persistence.
func (g *Graph) Snapshot() State {
	return State{
		ConversationID: g.conversationID,
		Nodes:          g.Nodes(),
		Edges:          g.Relationships(),
	}
}

// Restore replaces the graph's contents with a previously captured state.
func (g *Graph) Restore(state State) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make([]*Node, len(state.Nodes))
	g.byName = make(map[string]int, len(state.Nodes))
	for i := range state.Nodes {
		n := state.Nodes[i]
		n.ID = i
		g.nodes[i] = &n
		g.byName[strings.ToLower(n.Name)] = i
	}

	g.edges = make([]*Relationship, 0, len(state.Edges))
	g.edgeIndex = make(map[edgeKey]int, len(state.Edges))
	for i := range state.Edges {
		e := state.Edges[i]
		if e.SourceID >= len(g.nodes) || e.TargetID >= len(g.nodes) {
			continue
		}
		g.edges = append(g.edges, &e)
		g.edgeIndex[newEdgeKey(e.SourceID, e.TargetID, e.Type)] = len(g.edges) - 1
	}
}
