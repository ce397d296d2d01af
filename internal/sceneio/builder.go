package sceneio

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/diorama-project/diorama/internal/ident"
	"github.com/diorama-project/diorama/internal/scene"
)

// graphPlan is the dependency graph restricted to the persisted set:
// per node, a write-once UID and the UIDs of its in-set sources.
type graphPlan struct {
	order []*scene.Node
	uids  map[*scene.Node]string
	deps  map[*scene.Node][]string
}

// buildPlan walks the node set in input order. A UID is assigned the
// first time a node is referenced — as a dependency target or as the
// node itself — and never reassigned. Sources outside the persisted set
// are silently dropped: the archive does not represent them.
func buildPlan(nodes []*scene.Node, storage *scene.Storage) *graphPlan {
	plan := &graphPlan{
		uids: make(map[*scene.Node]string),
		deps: make(map[*scene.Node][]string),
	}
	gen := ident.New("OBJECT_", 6)

	// Persisted-set membership over arena handles.
	persisted := roaring.New()
	for _, n := range nodes {
		if h, ok := storage.Handle(n); ok {
			persisted.Add(uint32(h))
		}
	}

	for _, node := range nodes {
		if node == nil {
			continue
		}
		plan.order = append(plan.order, node)

		for _, src := range storage.Sources(node) {
			h, ok := storage.Handle(src)
			if !ok || !persisted.Contains(uint32(h)) {
				continue // source is not saved, so it gets no UID
			}
			uid, ok := plan.uids[src]
			if !ok {
				uid = gen.Next()
				plan.uids[src] = uid
			}
			plan.deps[node] = append(plan.deps[node], uid)
		}

		if _, ok := plan.uids[node]; !ok {
			plan.uids[node] = gen.Next()
		}
	}
	return plan
}

// filenameHint derives a safe file name stem from a node name: only
// [A-Za-z0-9_] survives, everything else becomes an underscore.
func filenameHint(name string) string {
	if name == "" {
		return "node"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
