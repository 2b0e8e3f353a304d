// Package entity extracts named entities from conversation text and
// maintains a per-conversation graph of entities and weighted relationships.
package entity

import (
	"errors"
	"time"
)

// Sentinel errors for the entity graph.
var (
	ErrUnknownEntity = errors.New("entity: unknown entity")
	ErrNoPath        = errors.New("entity: no path between entities")
)

// Type is the categorical type of an extracted entity.
type Type string

const (
	TypePerson       Type = "person"
	TypeOrganization Type = "organization"
	TypePlace        Type = "place"
	TypeConcept      Type = "concept"
	TypeFile         Type = "file"
	TypeTask         Type = "task"
	TypeWorkflow     Type = "workflow"
	TypeCodeFile     Type = "code_file"
	TypeFunction     Type = "function"
	TypeVariable     Type = "variable"
	TypeProject      Type = "project"
	TypeDate         Type = "date"
	TypeAmount       Type = "amount"
	TypeUnknown      Type = "unknown"
)

// RelationType is the kind of a directed relationship between two entities.
type RelationType string

const (
	RelMentionedWith RelationType = "mentioned_with"
	RelDependsOn     RelationType = "depends_on"
	RelCausedBy      RelationType = "caused_by"
	RelCreatedBy     RelationType = "created_by"
	RelAssignedTo    RelationType = "assigned_to"
	RelPartOf        RelationType = "part_of"
	RelReferences    RelationType = "references"
	RelRelatedTo     RelationType = "related_to"
	RelBlocks        RelationType = "blocks"
	RelImplements    RelationType = "implements"
	RelCalls         RelationType = "calls"
	RelContains      RelationType = "contains"
)

// Node is a single entity in the session graph. Nodes are unique per
// (conversation, normalized name); re-mentions update the existing node.
type Node struct {
	// ID is the node's stable index within the graph arena.
	ID int `json:"id"`

	// Name is the display name as first seen.
	Name string `json:"name"`

	// Type is the categorical entity type.
	Type Type `json:"type"`

	// FirstSeen and LastSeen bound the entity's mention history.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Mentions counts how many times the entity was registered.
	Mentions int `json:"mentions"`

	// Embedding is an optional vector for the entity name.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Relationship is a directed edge between two entities, referenced by their
// stable node IDs.
type Relationship struct {
	// SourceID and TargetID reference nodes by arena index.
	SourceID int `json:"source_id"`
	TargetID int `json:"target_id"`

	// Type is the relationship kind.
	Type RelationType `json:"type"`

	// Strength is the co-occurrence strength in [0,1]. Repeat observations
	// raise it by a fixed step; elapsed time decays it.
	Strength float64 `json:"strength"`

	// Occurrences counts how many times the pair co-occurred.
	Occurrences int `json:"occurrences"`

	// FirstSeen and LastSeen bound the edge's observation history.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	// Context is optional free text describing the relationship.
	Context string `json:"context,omitempty"`
}

const (
	// initialStrength is the strength assigned on first co-occurrence.
	initialStrength = 0.3

	// strengthStep is added on each repeat co-occurrence, capped at 1.0.
	strengthStep = 0.1

	// minStrength is the floor applied by decay.
	minStrength = 0.1
)
