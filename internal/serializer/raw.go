package serializer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/diorama-project/diorama/internal/scene"
)

func init() {
	RegisterSerializer("RawData", func() Serializer { return &RawDataSerializer{} })
	RegisterReader("RawData", func() Reader { return &RawDataReader{} })
}

// RawDataSerializer dumps a RawData payload to <hint>.bin.
type RawDataSerializer struct {
	payload scene.Data
	hint    string
	dir     string
}

func (s *RawDataSerializer) SetPayload(data scene.Data)  { s.payload = data }
func (s *RawDataSerializer) SetFilenameHint(hint string) { s.hint = hint }
func (s *RawDataSerializer) SetWorkingDirectory(d string) {
	s.dir = d
}

func (s *RawDataSerializer) Serialize() (string, error) {
	raw, ok := s.payload.(*scene.RawData)
	if !ok {
		return "", fmt.Errorf("RawDataSerializer: unexpected payload type %T", s.payload)
	}
	name := s.hint + ".bin"
	if err := os.WriteFile(filepath.Join(s.dir, name), raw.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// RawDataReader reads a file produced by RawDataSerializer.
type RawDataReader struct {
	dir string
}

func (r *RawDataReader) SetWorkingDirectory(d string) { r.dir = d }

func (r *RawDataReader) Read(filename string) (scene.Data, error) {
	b, err := os.ReadFile(filepath.Join(r.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return &scene.RawData{Bytes: b}, nil
}
