package serializer

import (
	"fmt"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/oj"

	"github.com/diorama-project/diorama/internal/scene"
)

// FailedEntry records one property that could not be serialized.
type FailedEntry struct {
	Key    string
	Reason string
}

// PropertyListSerializer writes one property list as a JSON file inside
// the staging area. Entries whose values cannot be represented as JSON
// are dropped from the file and reported; they never fail the list.
type PropertyListSerializer struct {
	FS   billy.Filesystem
	List *scene.PropertyList
	Hint string

	failed []FailedEntry
}

// Serialize writes <hint>.json and returns its relative path.
func (s *PropertyListSerializer) Serialize() (string, error) {
	s.failed = nil

	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for _, e := range s.List.Entries() {
		value, err := oj.Marshal(e.Value)
		if err != nil {
			s.failed = append(s.failed, FailedEntry{Key: e.Key, Reason: err.Error()})
			continue
		}
		key, err := oj.Marshal(e.Key)
		if err != nil {
			s.failed = append(s.failed, FailedEntry{Key: e.Key, Reason: err.Error()})
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.Write(key)
		sb.WriteByte(':')
		sb.Write(value)
	}
	sb.WriteByte('}')

	name := s.Hint + ".json"
	if err := util.WriteFile(s.FS, name, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write property list %s: %w", name, err)
	}
	return name, nil
}

// Failed returns the entries dropped during the last Serialize call.
func (s *PropertyListSerializer) Failed() []FailedEntry {
	return s.failed
}

// ReadPropertyList parses a property file back into a list. Key order is
// not preserved across a round trip; entries come back sorted by key.
func ReadPropertyList(fs billy.Filesystem, name string) (*scene.PropertyList, error) {
	b, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read property list %s: %w", name, err)
	}
	parsed, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse property list %s: %w", name, err)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property list %s: expected JSON object, got %T", name, parsed)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := scene.NewPropertyList()
	for _, k := range keys {
		list.Set(k, obj[k])
	}
	return list, nil
}
