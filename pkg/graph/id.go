package graph

import "github.com/google/uuid"

// NewNodeID and NewEdgeID are convenience generators for callers who
// don't want to mint their own opaque identifiers (spec.md §4.1 treats
// node/edge ids as caller-assigned opaque strings, not as an
// auto-increment the store owns). The graph store itself never calls
// these internally.
func NewNodeID() string { return uuid.NewString() }

func NewEdgeID() string { return uuid.NewString() }
