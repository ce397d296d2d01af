package cmd

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/oj"

	"github.com/diorama-project/diorama/internal/scene"
)

// sceneFileNode is one node of a JSON scene description.
type sceneFileNode struct {
	Name        string                    `json:"name"`
	Type        string                    `json:"type"`
	Payload     any                       `json:"payload"`
	PayloadFile string                    `json:"payload_file"`
	Properties  map[string]any            `json:"properties"`
	Contexts    map[string]map[string]any `json:"contexts"`
	Sources     []string                  `json:"sources"`
}

type sceneFileDoc struct {
	Nodes []sceneFileNode `json:"nodes"`
}

// loadSceneFile parses a scene description and builds a storage from it.
// Sources refer to node names and may point forward, so nodes are all
// created before any edge is resolved.
func loadSceneFile(path string) (*scene.Storage, []*scene.Node, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read scene file: %w", err)
	}
	var doc sceneFileDoc
	if err := oj.Unmarshal(b, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse scene file %s: %w", path, err)
	}

	storage := scene.NewStorage()
	byName := make(map[string]*scene.Node, len(doc.Nodes))
	nodes := make([]*scene.Node, 0, len(doc.Nodes))

	for _, spec := range doc.Nodes {
		if spec.Name == "" {
			return nil, nil, fmt.Errorf("scene file %s: node without a name", path)
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, nil, fmt.Errorf("scene file %s: duplicate node name %q", path, spec.Name)
		}
		node := scene.NewNode(spec.Name)
		node.Data, err = buildPayload(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", spec.Name, err)
		}
		for k, v := range spec.Properties {
			node.Properties().Set(k, v)
		}
		for context, props := range spec.Contexts {
			list := node.ContextProperties(context)
			for k, v := range props {
				list.Set(k, v)
			}
		}
		if err := storage.Add(node); err != nil {
			return nil, nil, err
		}
		byName[spec.Name] = node
		nodes = append(nodes, node)
	}

	for _, spec := range doc.Nodes {
		node := byName[spec.Name]
		for _, sourceName := range spec.Sources {
			source, ok := byName[sourceName]
			if !ok {
				return nil, nil, fmt.Errorf("node %q: unknown source %q", spec.Name, sourceName)
			}
			if err := storage.Connect(node, source); err != nil {
				return nil, nil, err
			}
		}
	}
	return storage, nodes, nil
}

func buildPayload(spec sceneFileNode) (scene.Data, error) {
	switch spec.Type {
	case "":
		return nil, nil // a node may carry properties only
	case "RawData":
		if spec.PayloadFile != "" {
			b, err := os.ReadFile(spec.PayloadFile)
			if err != nil {
				return nil, fmt.Errorf("read payload file: %w", err)
			}
			return &scene.RawData{Bytes: b}, nil
		}
		text, ok := spec.Payload.(string)
		if !ok {
			return nil, fmt.Errorf("RawData payload must be a string or a payload_file")
		}
		return &scene.RawData{Bytes: []byte(text)}, nil
	case "JSONData":
		return &scene.JSONData{Value: spec.Payload}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %q", spec.Type)
	}
}
