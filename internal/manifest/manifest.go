// Package manifest reads and writes the index document at the root of a
// scene archive: one record per persisted node with its identifier,
// dependency references, payload reference and property-list references.
package manifest

import (
	"encoding/xml"
	"fmt"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Filename is the manifest's fixed name at the archive root.
const Filename = "index.xml"

// FormatVersion is the only archive format this build reads or writes.
const FormatVersion = 1

// Document is the root of the index manifest.
type Document struct {
	XMLName xml.Name     `xml:"scene"`
	Version int          `xml:"version,attr"`
	Writer  string       `xml:"writer,attr,omitempty"`
	Nodes   []NodeRecord `xml:"node"`
}

// NodeRecord is one persisted node.
type NodeRecord struct {
	UID        string        `xml:"UID,attr"`
	Name       string        `xml:"name,attr,omitempty"`
	Sources    []SourceRef   `xml:"source"`
	Data       *DataRef      `xml:"data"`
	Properties []PropertyRef `xml:"properties"`
}

// SourceRef is a dependency reference: the UID of a node this record is
// derived from. It always resolves within the same manifest.
type SourceRef struct {
	UID string `xml:"UID,attr"`
}

// DataRef points at the file holding the node's serialized payload.
// Absent entirely when payload serialization failed.
type DataRef struct {
	Type       string       `xml:"type,attr"`
	File       string       `xml:"file,attr"`
	Properties *PropertyRef `xml:"properties"`
}

// PropertyRef points at one property-list file. Context is empty for the
// default list and carries the view-context name otherwise.
type PropertyRef struct {
	File    string `xml:"file,attr"`
	Context string `xml:"context,attr,omitempty"`
}

// Write serializes the document to name inside fs.
func Write(fs billy.Filesystem, name string, doc *Document) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	content := append([]byte(xml.Header), body...)
	content = append(content, '\n')
	if err := util.WriteFile(fs, name, content, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", name, err)
	}
	return nil
}

// Read parses the document at name inside fs. A missing file, a missing
// or wrong root element, or an unsupported format version are all hard
// failures for the load operation.
func Read(fs billy.Filesystem, name string) (*Document, error) {
	b, err := util.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}
	var doc Document
	if err := xml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", name, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported scene format version %d (want %d)", doc.Version, FormatVersion)
	}
	return &doc, nil
}
