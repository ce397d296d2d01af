// Package ident produces short, unique, human-readable identifiers used
// to tag graph nodes and to name staging directories. Uniqueness is
// scoped to one generator (one save/load operation); there is no
// cross-process guarantee.
package ident

import (
	"math/rand"
	"strings"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator hands out identifiers of the form prefix + random
// alphanumeric suffix. Issued identifiers are tracked in a used-set and
// regenerated on collision, so every Next call returns a distinct value.
// Not safe for concurrent use.
type Generator struct {
	prefix string
	length int
	used   map[string]struct{}
}

func New(prefix string, length int) *Generator {
	if length < 1 {
		length = 1
	}
	return &Generator{
		prefix: prefix,
		length: length,
		used:   make(map[string]struct{}),
	}
}

// Next returns a fresh identifier, distinct from every identifier this
// generator has returned before.
func (g *Generator) Next() string {
	var sb strings.Builder
	for {
		sb.Reset()
		sb.WriteString(g.prefix)
		for i := 0; i < g.length; i++ {
			sb.WriteByte(alphabet[rand.Intn(len(alphabet))])
		}
		id := sb.String()
		if _, taken := g.used[id]; !taken {
			g.used[id] = struct{}{}
			return id
		}
	}
}
