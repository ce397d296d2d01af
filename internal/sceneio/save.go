package sceneio

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/diorama-project/diorama/internal/manifest"
	"github.com/diorama-project/diorama/internal/scene"
	"github.com/diorama-project/diorama/internal/serializer"
	"github.com/diorama-project/diorama/internal/staging"
)

var (
	ErrNoStorage     = errors.New("no scene storage given")
	ErrNoDestination = errors.New("no destination filename given")
)

// saveOp is the mutable context of one save pass. Accumulators live
// here, scoped to the operation, never shared across concurrent saves.
type saveOp struct {
	result    *SaveResult
	area      *staging.Area
	plan      *graphPlan
	usedHints map[string]int
}

// SaveScene serializes the given subset of storage's nodes into a single
// archive at dest. Per-node and per-property failures accumulate in the
// result without aborting; the returned error is non-nil only for hard
// failures (validation, staging, manifest write, archive pack).
func (s *SceneIO) SaveScene(nodes []*scene.Node, storage *scene.Storage, dest string) (*SaveResult, error) {
	op := &saveOp{
		result:    &SaveResult{Phase: PhaseValidatingInputs},
		usedHints: make(map[string]int),
	}

	if storage == nil {
		return s.fail(op, ErrNoStorage)
	}
	if dest == "" {
		return s.fail(op, ErrNoDestination)
	}
	if len(nodes) == 0 {
		s.logger.Warn("saving empty scene", "dest", dest)
	} else {
		s.logger.Info("storing scene", "nodes", len(nodes), "dest", dest)
	}

	area, err := staging.Create(s.stagingRoot, s.logger)
	if err != nil {
		return s.fail(op, fmt.Errorf("create staging area: %w", err))
	}
	op.area = area
	op.result.Phase = PhaseStagingCreated

	op.plan = buildPlan(nodes, storage)
	op.result.Phase = PhaseGraphBuilt

	doc := &manifest.Document{Version: manifest.FormatVersion, Writer: s.writer}
	for _, node := range op.plan.order {
		doc.Nodes = append(doc.Nodes, s.saveNode(op, node))
	}
	op.result.Phase = PhaseNodesSerialized

	if err := manifest.Write(area.FS(), manifest.Filename, doc); err != nil {
		return s.fail(op, err)
	}
	op.result.Phase = PhaseDocumentWritten

	if err := s.codec.Pack(area.Path(), dest); err != nil {
		return s.fail(op, fmt.Errorf("pack scene archive: %w", err))
	}
	op.result.Phase = PhaseArchived

	s.cleanup(op)
	op.result.Phase = PhaseDone
	return op.result, nil
}

// saveNode produces the manifest record for one node: payload via the
// serializer registry, then the "-data", default "-node" and per-context
// property lists.
func (s *SceneIO) saveNode(op *saveOp, node *scene.Node) manifest.NodeRecord {
	record := manifest.NodeRecord{
		UID:     op.plan.uids[node],
		Name:    node.Name,
		Sources: sourceRefs(op.plan.deps[node]),
	}
	hint := op.uniqueHint(filenameHint(node.Name))

	if node.Data != nil {
		record.Data = s.savePayload(op, node, hint)
	}

	if list := node.Properties(); !list.IsEmpty() {
		if ref := s.saveProperties(op, node, list, hint+"-node", "node"); ref != nil {
			record.Properties = append(record.Properties, *ref)
		}
	}
	for _, context := range node.ContextNames() {
		list := node.ContextProperties(context)
		if list.IsEmpty() {
			continue
		}
		if ref := s.saveProperties(op, node, list, hint+"-"+filenameHint(context), context); ref != nil {
			ref.Context = context
			record.Properties = append(record.Properties, *ref)
		}
	}
	return record
}

// savePayload asks the registry for a serializer and runs the first
// candidate. The first candidate is authoritative: if it fails, the node
// is marked failed and no further candidates are tried. A failed payload
// is simply absent from the record, never half-written.
func (s *SceneIO) savePayload(op *saveOp, node *scene.Node, hint string) *manifest.DataRef {
	typeName := node.Data.TypeName()
	candidates := serializer.FindSerializers(typeName)
	if len(candidates) == 0 {
		s.logger.Error("no serializer found, skipping object", "type", typeName, "node", node.Name)
		op.result.FailedNodes = append(op.result.FailedNodes, node)
		return nil
	}

	ser := candidates[0]
	ser.SetPayload(node.Data)
	ser.SetFilenameHint(hint)
	ser.SetWorkingDirectory(op.area.Path())
	written, err := ser.Serialize()
	if err != nil {
		s.logger.Error("serializer failed", "type", typeName, "node", node.Name, "error", err)
		op.result.FailedNodes = append(op.result.FailedNodes, node)
		return nil
	}

	ref := &manifest.DataRef{Type: typeName, File: written}
	if provider, ok := node.Data.(scene.PropertyProvider); ok {
		if list := provider.Properties(); !list.IsEmpty() {
			ref.Properties = s.saveProperties(op, node, list, hint+"-data", "data")
		}
	}
	return ref
}

// saveProperties writes one property list into the staging area and
// folds its per-entry failures into the save accumulator. A list that
// cannot be written at all is also a soft failure: the reference is
// omitted and the save continues.
func (s *SceneIO) saveProperties(op *saveOp, node *scene.Node, list *scene.PropertyList, hint, listName string) *manifest.PropertyRef {
	ser := &serializer.PropertyListSerializer{FS: op.area.FS(), List: list, Hint: hint}
	written, err := ser.Serialize()
	for _, f := range ser.Failed() {
		op.result.FailedProperties = append(op.result.FailedProperties, FailedProperty{
			Node:   node.Name,
			List:   listName,
			Key:    f.Key,
			Reason: f.Reason,
		})
	}
	if err != nil {
		s.logger.Error("property list serialization failed", "node", node.Name, "list", listName, "error", err)
		op.result.FailedProperties = append(op.result.FailedProperties, FailedProperty{
			Node:   node.Name,
			List:   listName,
			Reason: err.Error(),
		})
		return nil
	}
	return &manifest.PropertyRef{File: written}
}

// uniqueHint disambiguates file name stems: two nodes named alike must
// not overwrite each other's staged files.
func (op *saveOp) uniqueHint(hint string) string {
	n := op.usedHints[hint]
	op.usedHints[hint] = n + 1
	if n == 0 {
		return hint
	}
	return hint + "_" + strconv.Itoa(n)
}

func sourceRefs(uids []string) []manifest.SourceRef {
	refs := make([]manifest.SourceRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, manifest.SourceRef{UID: uid})
	}
	return refs
}

// fail cleans up (if staging was created) and returns the hard error.
func (s *SceneIO) fail(op *saveOp, err error) (*SaveResult, error) {
	s.cleanup(op)
	op.result.Phase = PhaseFailed
	s.logger.Error("scene save failed", "error", err)
	return op.result, err
}

// cleanup removes the staging area. Cleaned is recorded before any
// terminal phase whenever staging existed.
func (s *SceneIO) cleanup(op *saveOp) {
	if op.area == nil {
		return
	}
	op.area.Cleanup()
	op.area = nil
	op.result.Phase = PhaseCleaned
}
