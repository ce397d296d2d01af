package scene

import (
	"errors"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNotMember    = errors.New("node is not a member of this storage")
	ErrNilNode      = errors.New("nil node")
	ErrDuplicateAdd = errors.New("node already added")
)

// Handle is a stable integer address for a node inside one Storage.
// Dependency lists store handles, not node pointers, so the container
// never forms ownership cycles between nodes and their edge lists.
type Handle uint32

// Storage is the scene graph container: an arena of nodes in insertion
// order plus "is derived from" edges (source → derivative) recorded as
// handle lists. A roaring bitmap tracks live handles so membership
// checks during a save pass are O(1) without scanning the arena.
type Storage struct {
	mu      sync.RWMutex
	arena   []*Node
	handles map[*Node]Handle
	sources map[Handle][]Handle
	live    *roaring.Bitmap
}

func NewStorage() *Storage {
	return &Storage{
		handles: make(map[*Node]Handle),
		sources: make(map[Handle][]Handle),
		live:    roaring.New(),
	}
}

// Add inserts a node, optionally recording its direct sources. All
// sources must already be members; edges to non-members are an error
// here (the save path is where out-of-set edges get silently dropped).
func (s *Storage) Add(n *Node, sources ...*Node) error {
	if n == nil {
		return ErrNilNode
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[n]; ok {
		return ErrDuplicateAdd
	}
	srcHandles := make([]Handle, 0, len(sources))
	for _, src := range sources {
		h, ok := s.handles[src]
		if !ok || !s.live.Contains(uint32(h)) {
			return ErrNotMember
		}
		srcHandles = append(srcHandles, h)
	}

	h := Handle(len(s.arena))
	s.arena = append(s.arena, n)
	s.handles[n] = h
	s.live.Add(uint32(h))
	if len(srcHandles) > 0 {
		s.sources[h] = srcHandles
	}
	return nil
}

// Connect records additional sources for an existing member node.
// Used by the load path, which creates all nodes before resolving edges.
func (s *Storage) Connect(n *Node, sources ...*Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[n]
	if !ok || !s.live.Contains(uint32(h)) {
		return ErrNotMember
	}
	for _, src := range sources {
		sh, ok := s.handles[src]
		if !ok || !s.live.Contains(uint32(sh)) {
			return ErrNotMember
		}
		s.sources[h] = append(s.sources[h], sh)
	}
	return nil
}

// All returns the live nodes in insertion order.
func (s *Storage) All() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*Node, 0, s.live.GetCardinality())
	it := s.live.Iterator()
	for it.HasNext() {
		nodes = append(nodes, s.arena[it.Next()])
	}
	return nodes
}

// Sources returns the direct predecessors of n, skipping any that have
// been removed since the edge was recorded.
func (s *Storage) Sources(n *Node) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.handles[n]
	if !ok {
		return nil
	}
	var out []*Node
	for _, sh := range s.sources[h] {
		if s.live.Contains(uint32(sh)) {
			out = append(out, s.arena[sh])
		}
	}
	return out
}

// Contains reports whether n is a live member.
func (s *Storage) Contains(n *Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[n]
	return ok && s.live.Contains(uint32(h))
}

// Handle returns the arena handle of a live member node.
func (s *Storage) Handle(n *Node) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[n]
	if !ok || !s.live.Contains(uint32(h)) {
		return 0, false
	}
	return h, true
}

// Len returns the number of live nodes.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.live.GetCardinality())
}

// Remove drops nodes from the container. Arena slots are tombstoned, not
// compacted, so handles of surviving nodes stay stable.
func (s *Storage) Remove(nodes ...*Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		h, ok := s.handles[n]
		if !ok {
			continue
		}
		s.live.Remove(uint32(h))
		delete(s.handles, n)
		delete(s.sources, h)
		s.arena[h] = nil
	}
}

// Clear removes every node.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arena = s.arena[:0]
	s.handles = make(map[*Node]Handle)
	s.sources = make(map[Handle][]Handle)
	s.live.Clear()
}
