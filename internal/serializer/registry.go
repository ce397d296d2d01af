// Package serializer is the runtime capability lookup for per-type
// payload formats. Data types register serializer and reader factories
// at init; the orchestrator discovers them by the declared type name
// using the <TypeName>Serializer / <TypeName>Reader naming convention.
package serializer

import (
	"sync"

	"github.com/diorama-project/diorama/internal/scene"
)

// Serializer writes one payload into a working directory and returns the
// relative path of the file it produced.
type Serializer interface {
	SetPayload(data scene.Data)
	SetFilenameHint(hint string)
	SetWorkingDirectory(dir string)
	Serialize() (string, error)
}

// Reader reconstructs a payload from a file written by the matching
// Serializer.
type Reader interface {
	SetWorkingDirectory(dir string)
	Read(filename string) (scene.Data, error)
}

type (
	SerializerFactory func() Serializer
	ReaderFactory     func() Reader
)

var (
	mu          sync.RWMutex
	serializers = make(map[string][]SerializerFactory)
	readers     = make(map[string][]ReaderFactory)
)

// RegisterSerializer registers a factory under <typeName>Serializer.
// Registration happens at process init; the registry is never mutated
// during a save/load pass.
func RegisterSerializer(typeName string, f SerializerFactory) {
	mu.Lock()
	defer mu.Unlock()
	key := typeName + "Serializer"
	serializers[key] = append(serializers[key], f)
}

// RegisterReader registers a factory under <typeName>Reader.
func RegisterReader(typeName string, f ReaderFactory) {
	mu.Lock()
	defer mu.Unlock()
	key := typeName + "Reader"
	readers[key] = append(readers[key], f)
}

// FindSerializers returns fresh instances of every serializer registered
// for the declared type name. Zero candidates is a valid answer the
// caller must tolerate.
func FindSerializers(typeName string) []Serializer {
	mu.RLock()
	factories := serializers[typeName+"Serializer"]
	mu.RUnlock()

	out := make([]Serializer, 0, len(factories))
	for _, f := range factories {
		out = append(out, f())
	}
	return out
}

// FindReaders returns fresh instances of every reader registered for the
// declared type name.
func FindReaders(typeName string) []Reader {
	mu.RLock()
	factories := readers[typeName+"Reader"]
	mu.RUnlock()

	out := make([]Reader, 0, len(factories))
	for _, f := range factories {
		out = append(out, f())
	}
	return out
}
