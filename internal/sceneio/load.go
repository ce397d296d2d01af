package sceneio

import (
	"errors"
	"fmt"
	"os"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/diorama-project/diorama/internal/manifest"
	"github.com/diorama-project/diorama/internal/scene"
	"github.com/diorama-project/diorama/internal/serializer"
	"github.com/diorama-project/diorama/internal/staging"
)

var ErrNoArchive = errors.New("no archive filename given")

// LoadScene unpacks the archive and reconstructs the scene graph into
// storage (a fresh Storage when nil). The returned storage is never nil:
// on partial failure it holds whatever could be reconstructed, and the
// result records what could not. Hard failures (unreadable archive,
// staging failure, malformed manifest) land in result.Err.
func (s *SceneIO) LoadScene(archivePath string, storage *scene.Storage, clearFirst bool) (*scene.Storage, *LoadResult) {
	result := &LoadResult{Phase: PhaseValidatingInputs}
	if storage == nil {
		storage = scene.NewStorage()
	}

	if archivePath == "" {
		return s.loadFail(storage, result, nil, ErrNoArchive)
	}
	if _, err := os.Stat(archivePath); err != nil {
		return s.loadFail(storage, result, nil, fmt.Errorf("cannot open scene archive: %w", err))
	}

	area, err := staging.Create(s.stagingRoot, s.logger)
	if err != nil {
		return s.loadFail(storage, result, nil, fmt.Errorf("create staging area: %w", err))
	}

	unpack, err := s.codec.Unpack(archivePath, area.Path())
	result.UnpackFailures = unpack.Failures
	if err != nil {
		return s.loadFail(storage, result, area, err)
	}
	if len(unpack.Failures) > 0 {
		// Partial scenes are better than none: keep going with whatever
		// could be extracted.
		s.logger.Error("errors while unpacking scene archive",
			"archive", archivePath, "failures", len(unpack.Failures))
	}
	result.Phase = PhaseUnpacked

	s.reconstruct(area.FS(), storage, clearFirst, result)

	area.Cleanup()
	result.Phase = PhaseCleaned
	if result.Err != nil {
		result.Phase = PhaseFailed
	} else {
		result.Phase = PhaseDone
	}
	return storage, result
}

// LoadSceneUnpacked reconstructs a scene from an already-unpacked
// directory containing the index manifest. No staging area is involved,
// so there is nothing to clean up.
func (s *SceneIO) LoadSceneUnpacked(dir string, storage *scene.Storage, clearFirst bool) (*scene.Storage, *LoadResult) {
	result := &LoadResult{Phase: PhaseValidatingInputs}
	if storage == nil {
		storage = scene.NewStorage()
	}
	if dir == "" {
		result.Phase = PhaseFailed
		result.Err = ErrNoArchive
		return storage, result
	}

	s.reconstruct(osfs.New(dir), storage, clearFirst, result)

	if result.Err != nil {
		result.Phase = PhaseFailed
	} else {
		result.Phase = PhaseDone
	}
	return storage, result
}

// reconstruct parses the manifest and rebuilds nodes and edges.
// Two-pass: every record's node is constructed first, then source UIDs
// are resolved against the uid→node map, so a dependency may be declared
// anywhere in the document.
func (s *SceneIO) reconstruct(fs billy.Filesystem, storage *scene.Storage, clearFirst bool, result *LoadResult) {
	if clearFirst {
		storage.Clear()
	}

	doc, err := manifest.Read(fs, manifest.Filename)
	if err != nil {
		result.Err = err
		return
	}
	result.Phase = PhaseDocumentParsed

	// Pass 1: construct one node per record.
	byUID := make(map[string]*scene.Node, len(doc.Nodes))
	for _, record := range doc.Nodes {
		node, err := s.reconstructNode(fs, record)
		if err != nil {
			s.logger.Error("skipping node", "uid", record.UID, "error", err)
			result.FailedNodes = append(result.FailedNodes, record.UID)
			continue
		}
		byUID[record.UID] = node
		if err := storage.Add(node); err != nil {
			s.logger.Error("could not add node to storage", "uid", record.UID, "error", err)
			result.FailedNodes = append(result.FailedNodes, record.UID)
			delete(byUID, record.UID)
		}
	}

	// Pass 2: resolve dependency references. A reference to a node that
	// failed to construct is dropped, not an error.
	for _, record := range doc.Nodes {
		node, ok := byUID[record.UID]
		if !ok {
			continue
		}
		for _, src := range record.Sources {
			source, ok := byUID[src.UID]
			if !ok {
				s.logger.Warn("unresolvable source reference", "uid", record.UID, "source", src.UID)
				continue
			}
			if err := storage.Connect(node, source); err != nil {
				s.logger.Warn("could not connect nodes", "uid", record.UID, "source", src.UID, "error", err)
			}
		}
	}
	result.Phase = PhaseGraphReconstructed
}

// reconstructNode builds one scene node from its manifest record:
// payload via the reader registry, then the recorded property lists.
func (s *SceneIO) reconstructNode(fs billy.Filesystem, record manifest.NodeRecord) (*scene.Node, error) {
	node := scene.NewNode(record.Name)

	if record.Data != nil {
		data, err := s.readPayload(fs, record.Data)
		if err != nil {
			return nil, err
		}
		node.Data = data
	}

	for _, ref := range record.Properties {
		list, err := serializer.ReadPropertyList(fs, ref.File)
		if err != nil {
			// A single unreadable property file degrades the node, not
			// the load.
			s.logger.Error("could not read property list", "file", ref.File, "error", err)
			continue
		}
		if ref.Context == "" {
			node.Properties().Merge(list)
		} else {
			node.ContextProperties(ref.Context).Merge(list)
		}
	}
	return node, nil
}

func (s *SceneIO) readPayload(fs billy.Filesystem, ref *manifest.DataRef) (scene.Data, error) {
	candidates := serializer.FindReaders(ref.Type)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no reader found for type %s", ref.Type)
	}

	reader := candidates[0]
	reader.SetWorkingDirectory(fs.Root())
	data, err := reader.Read(ref.File)
	if err != nil {
		return nil, fmt.Errorf("reader for %s failed: %w", ref.Type, err)
	}

	if ref.Properties != nil {
		if provider, ok := data.(scene.PropertyProvider); ok {
			list, err := serializer.ReadPropertyList(fs, ref.Properties.File)
			if err != nil {
				s.logger.Error("could not read payload property list", "file", ref.Properties.File, "error", err)
			} else {
				provider.Properties().Merge(list)
			}
		}
	}
	return data, nil
}

// loadFail cleans up staging (when created) and finalizes the result as
// Failed. The storage is still returned: best effort, never nil.
func (s *SceneIO) loadFail(storage *scene.Storage, result *LoadResult, area *staging.Area, err error) (*scene.Storage, *LoadResult) {
	if area != nil {
		area.Cleanup()
		result.Phase = PhaseCleaned
	}
	result.Phase = PhaseFailed
	result.Err = err
	s.logger.Error("scene load failed", "error", err)
	return storage, result
}
