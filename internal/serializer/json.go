package serializer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ohler55/ojg/oj"

	"github.com/diorama-project/diorama/internal/scene"
)

func init() {
	RegisterSerializer("JSONData", func() Serializer { return &JSONDataSerializer{} })
	RegisterReader("JSONData", func() Reader { return &JSONDataReader{} })
}

// JSONDataSerializer writes a JSONData payload to <hint>.json.
type JSONDataSerializer struct {
	payload scene.Data
	hint    string
	dir     string
}

func (s *JSONDataSerializer) SetPayload(data scene.Data)   { s.payload = data }
func (s *JSONDataSerializer) SetFilenameHint(hint string)  { s.hint = hint }
func (s *JSONDataSerializer) SetWorkingDirectory(d string) { s.dir = d }

func (s *JSONDataSerializer) Serialize() (string, error) {
	doc, ok := s.payload.(*scene.JSONData)
	if !ok {
		return "", fmt.Errorf("JSONDataSerializer: unexpected payload type %T", s.payload)
	}
	b, err := oj.Marshal(doc.Value)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	name := s.hint + ".json"
	if err := os.WriteFile(filepath.Join(s.dir, name), b, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// JSONDataReader reads a file produced by JSONDataSerializer.
type JSONDataReader struct {
	dir string
}

func (r *JSONDataReader) SetWorkingDirectory(d string) { r.dir = d }

func (r *JSONDataReader) Read(filename string) (scene.Data, error) {
	b, err := os.ReadFile(filepath.Join(r.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	value, err := oj.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return &scene.JSONData{Value: value}, nil
}
