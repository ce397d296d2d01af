package sceneio

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diorama-project/diorama/internal/manifest"
	"github.com/diorama-project/diorama/internal/scene"
	"github.com/diorama-project/diorama/internal/serializer"
)

// explodingData has a registered serializer that always fails, to exercise
// the partial-failure path.
type explodingData struct{}

func (explodingData) TypeName() string { return "ExplodingData" }

type explodingSerializer struct{}

func (*explodingSerializer) SetPayload(scene.Data)      {}
func (*explodingSerializer) SetFilenameHint(string)     {}
func (*explodingSerializer) SetWorkingDirectory(string) {}
func (*explodingSerializer) Serialize() (string, error) {
	return "", errors.New("boom")
}

// ghostData has no serializer registered at all.
type ghostData struct{}

func (ghostData) TypeName() string { return "GhostData" }

func init() {
	serializer.RegisterSerializer("ExplodingData", func() serializer.Serializer {
		return &explodingSerializer{}
	})
}

func newTestIO(t *testing.T, stagingRoot string) *SceneIO {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(WithLogger(logger), WithStagingRoot(stagingRoot))
}

// buildSampleScene assembles a small graph: a raw volume, a JSON
// measurement derived from it, and a data-less marker node.
func buildSampleScene(t *testing.T) (*scene.Storage, []*scene.Node) {
	t.Helper()
	storage := scene.NewStorage()

	volume := scene.NewNode("volume")
	volume.Data = &scene.RawData{Bytes: []byte("voxel soup")}
	volume.Data.(*scene.RawData).Properties().Set("modality", "CT")
	volume.Properties().Set("visible", true)
	volume.ContextProperties("axial").Set("opacity", 0.5)
	require.NoError(t, storage.Add(volume))

	measurement := scene.NewNode("measurement")
	measurement.Data = &scene.JSONData{Value: map[string]any{"length_mm": 42.5}}
	require.NoError(t, storage.Add(measurement, volume))

	marker := scene.NewNode("marker")
	marker.Properties().Set("color", "red")
	require.NoError(t, storage.Add(marker, volume))

	return storage, []*scene.Node{volume, measurement, marker}
}

func nodeByName(t *testing.T, nodes []*scene.Node, name string) *scene.Node {
	t.Helper()
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("no node named %q", name)
	return nil
}

func assertStagingGone(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory left behind under %s", root)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	stagingRoot := t.TempDir()
	engine := newTestIO(t, stagingRoot)
	storage, nodes := buildSampleScene(t)
	dest := filepath.Join(t.TempDir(), "scene.zip")

	saveResult, err := engine.SaveScene(nodes, storage, dest)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, saveResult.Phase)
	assert.Empty(t, saveResult.FailedNodes)
	assert.Empty(t, saveResult.FailedProperties)
	assertStagingGone(t, stagingRoot)

	loaded, loadResult := engine.LoadScene(dest, nil, false)
	require.NotNil(t, loaded)
	require.NoError(t, loadResult.Err)
	assert.Equal(t, PhaseDone, loadResult.Phase)
	assert.Empty(t, loadResult.FailedNodes)
	assert.Empty(t, loadResult.UnpackFailures)
	assertStagingGone(t, stagingRoot)

	all := loaded.All()
	require.Len(t, all, 3)

	volume := nodeByName(t, all, "volume")
	raw, ok := volume.Data.(*scene.RawData)
	require.True(t, ok)
	assert.Equal(t, []byte("voxel soup"), raw.Bytes)
	modality, ok := raw.Properties().Get("modality")
	require.True(t, ok)
	assert.Equal(t, "CT", modality)
	visible, ok := volume.Properties().Get("visible")
	require.True(t, ok)
	assert.Equal(t, true, visible)
	opacity, ok := volume.ContextProperties("axial").Get("opacity")
	require.True(t, ok)
	assert.Equal(t, 0.5, opacity)

	measurement := nodeByName(t, all, "measurement")
	doc, ok := measurement.Data.(*scene.JSONData)
	require.True(t, ok)
	value, ok := doc.Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42.5, value["length_mm"])
	sources := loaded.Sources(measurement)
	require.Len(t, sources, 1)
	assert.Equal(t, "volume", sources[0].Name)

	marker := nodeByName(t, all, "marker")
	assert.Nil(t, marker.Data)
	require.Len(t, loaded.Sources(marker), 1)
}

func TestSave_ManifestShape(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage, nodes := buildSampleScene(t)
	dest := filepath.Join(t.TempDir(), "scene.zip")

	_, err := engine.SaveScene(nodes, storage, dest)
	require.NoError(t, err)

	// Crack the archive open and inspect the index document directly.
	extractDir := t.TempDir()
	_, err = engine.codec.Unpack(dest, extractDir)
	require.NoError(t, err)
	doc, err := manifest.Read(osfs.New(extractDir), manifest.Filename)
	require.NoError(t, err)

	assert.Equal(t, manifest.FormatVersion, doc.Version)
	assert.Equal(t, "diorama", doc.Writer)
	require.Len(t, doc.Nodes, 3)

	uids := make(map[string]struct{})
	for _, record := range doc.Nodes {
		assert.NotEmpty(t, record.UID)
		_, dup := uids[record.UID]
		assert.False(t, dup, "duplicate UID %s", record.UID)
		uids[record.UID] = struct{}{}
	}
	for _, record := range doc.Nodes {
		for _, src := range record.Sources {
			_, ok := uids[src.UID]
			assert.True(t, ok, "source %s of %s does not resolve", src.UID, record.UID)
		}
		if record.Data != nil {
			assert.NotEmpty(t, record.Data.Type)
			assert.NotEmpty(t, record.Data.File)
		}
	}
}

func TestSave_DuplicateNamesGetDistinctFiles(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage := scene.NewStorage()

	first := scene.NewNode("twin")
	first.Data = &scene.RawData{Bytes: []byte("first")}
	second := scene.NewNode("twin")
	second.Data = &scene.RawData{Bytes: []byte("second")}
	require.NoError(t, storage.Add(first))
	require.NoError(t, storage.Add(second))

	dest := filepath.Join(t.TempDir(), "twins.zip")
	result, err := engine.SaveScene([]*scene.Node{first, second}, storage, dest)
	require.NoError(t, err)
	assert.Empty(t, result.FailedNodes)

	loaded, loadResult := engine.LoadScene(dest, nil, false)
	require.NoError(t, loadResult.Err)
	all := loaded.All()
	require.Len(t, all, 2)

	var contents []string
	for _, n := range all {
		raw, ok := n.Data.(*scene.RawData)
		require.True(t, ok)
		contents = append(contents, string(raw.Bytes))
	}
	assert.ElementsMatch(t, []string{"first", "second"}, contents)
}

func TestSave_NodeWithoutSerializerIsSoftFailure(t *testing.T) {
	stagingRoot := t.TempDir()
	engine := newTestIO(t, stagingRoot)
	storage := scene.NewStorage()

	good := scene.NewNode("good")
	good.Data = &scene.RawData{Bytes: []byte("fine")}
	ghost := scene.NewNode("ghost")
	ghost.Data = ghostData{}
	require.NoError(t, storage.Add(good))
	require.NoError(t, storage.Add(ghost))

	dest := filepath.Join(t.TempDir(), "scene.zip")
	result, err := engine.SaveScene([]*scene.Node{good, ghost}, storage, dest)
	require.NoError(t, err, "missing serializer must not abort the save")
	assert.Equal(t, PhaseDone, result.Phase)
	require.Len(t, result.FailedNodes, 1)
	assert.Same(t, ghost, result.FailedNodes[0])
	assertStagingGone(t, stagingRoot)

	// The failed node is still present in the archive, just without data.
	loaded, loadResult := engine.LoadScene(dest, nil, false)
	require.NoError(t, loadResult.Err)
	all := loaded.All()
	require.Len(t, all, 2)
	assert.Nil(t, nodeByName(t, all, "ghost").Data)
	assert.NotNil(t, nodeByName(t, all, "good").Data)
}

func TestSave_SerializerErrorIsSoftFailure(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage := scene.NewStorage()

	bomb := scene.NewNode("bomb")
	bomb.Data = explodingData{}
	require.NoError(t, storage.Add(bomb))

	dest := filepath.Join(t.TempDir(), "scene.zip")
	result, err := engine.SaveScene([]*scene.Node{bomb}, storage, dest)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, result.Phase)
	require.Len(t, result.FailedNodes, 1)
}

func TestSave_UnserializablePropertyIsReported(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage := scene.NewStorage()

	n := scene.NewNode("n")
	n.Properties().Set("ok", 1)
	n.Properties().Set("broken", func() {})
	require.NoError(t, storage.Add(n))

	dest := filepath.Join(t.TempDir(), "scene.zip")
	result, err := engine.SaveScene([]*scene.Node{n}, storage, dest)
	require.NoError(t, err)
	require.Len(t, result.FailedProperties, 1)
	assert.Equal(t, "n", result.FailedProperties[0].Node)
	assert.Equal(t, "node", result.FailedProperties[0].List)
	assert.Equal(t, "broken", result.FailedProperties[0].Key)

	loaded, loadResult := engine.LoadScene(dest, nil, false)
	require.NoError(t, loadResult.Err)
	props := nodeByName(t, loaded.All(), "n").Properties()
	_, ok := props.Get("ok")
	assert.True(t, ok)
	_, ok = props.Get("broken")
	assert.False(t, ok)
}

func TestSave_EmptyScene(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	dest := filepath.Join(t.TempDir(), "empty.zip")

	result, err := engine.SaveScene(nil, scene.NewStorage(), dest)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, result.Phase)

	loaded, loadResult := engine.LoadScene(dest, nil, false)
	require.NoError(t, loadResult.Err)
	assert.Equal(t, 0, loaded.Len())
}

func TestSave_Validation(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage, nodes := buildSampleScene(t)

	result, err := engine.SaveScene(nodes, nil, "x.zip")
	require.ErrorIs(t, err, ErrNoStorage)
	assert.Equal(t, PhaseFailed, result.Phase)

	result, err = engine.SaveScene(nodes, storage, "")
	require.ErrorIs(t, err, ErrNoDestination)
	assert.Equal(t, PhaseFailed, result.Phase)
}

func TestSave_PackFailureCleansStaging(t *testing.T) {
	stagingRoot := t.TempDir()
	engine := newTestIO(t, stagingRoot)
	storage, nodes := buildSampleScene(t)

	dest := filepath.Join(t.TempDir(), "no", "such", "dir", "scene.zip")
	result, err := engine.SaveScene(nodes, storage, dest)
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, result.Phase)
	assertStagingGone(t, stagingRoot)
}

func TestLoad_MissingArchive(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	loaded, result := engine.LoadScene(filepath.Join(t.TempDir(), "nope.zip"), nil, false)
	require.NotNil(t, loaded, "storage is returned even on failure")
	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Error(t, result.Err)
}

func TestLoad_CorruptArchiveCleansStaging(t *testing.T) {
	stagingRoot := t.TempDir()
	engine := newTestIO(t, stagingRoot)

	junk := filepath.Join(t.TempDir(), "junk.zip")
	require.NoError(t, os.WriteFile(junk, []byte("this is not a zip file"), 0o644))

	loaded, result := engine.LoadScene(junk, nil, false)
	require.NotNil(t, loaded)
	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Error(t, result.Err)
	assertStagingGone(t, stagingRoot)
}

func TestLoad_ClearFirst(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage, nodes := buildSampleScene(t)
	dest := filepath.Join(t.TempDir(), "scene.zip")
	_, err := engine.SaveScene(nodes, storage, dest)
	require.NoError(t, err)

	preloaded := scene.NewStorage()
	require.NoError(t, preloaded.Add(scene.NewNode("resident")))

	merged, result := engine.LoadScene(dest, preloaded, false)
	require.NoError(t, result.Err)
	assert.Equal(t, 4, merged.Len(), "without clearFirst the resident node survives")

	cleared, result := engine.LoadScene(dest, merged, true)
	require.NoError(t, result.Err)
	assert.Equal(t, 3, cleared.Len(), "clearFirst drops everything loaded before")
}

func TestLoad_Twice_SameScene(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	storage, nodes := buildSampleScene(t)
	dest := filepath.Join(t.TempDir(), "scene.zip")
	_, err := engine.SaveScene(nodes, storage, dest)
	require.NoError(t, err)

	first, r1 := engine.LoadScene(dest, nil, false)
	require.NoError(t, r1.Err)
	second, r2 := engine.LoadScene(dest, nil, false)
	require.NoError(t, r2.Err)

	require.Equal(t, first.Len(), second.Len())
	for _, a := range first.All() {
		b := nodeByName(t, second.All(), a.Name)
		assert.Equal(t, a.Properties().Entries(), b.Properties().Entries(), a.Name)
		assert.Equal(t, len(first.Sources(a)), len(second.Sources(b)), a.Name)
		if raw, ok := a.Data.(*scene.RawData); ok {
			assert.Equal(t, raw.Bytes, b.Data.(*scene.RawData).Bytes, a.Name)
		}
	}
}

func TestLoadUnpacked_MissingPayloadFileSkipsNode(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	dir := t.TempDir()
	fs := osfs.New(dir)

	doc := &manifest.Document{
		Version: manifest.FormatVersion,
		Nodes: []manifest.NodeRecord{
			{UID: "OBJECT_one", Name: "broken", Data: &manifest.DataRef{Type: "RawData", File: "gone.bin"}},
			{UID: "OBJECT_two", Name: "fine", Sources: []manifest.SourceRef{{UID: "OBJECT_one"}}},
		},
	}
	require.NoError(t, manifest.Write(fs, manifest.Filename, doc))

	loaded, result := engine.LoadSceneUnpacked(dir, nil, false)
	require.NoError(t, result.Err, "a skipped node is not a hard failure")
	assert.Equal(t, []string{"OBJECT_one"}, result.FailedNodes)

	all := loaded.All()
	require.Len(t, all, 1)
	fine := nodeByName(t, all, "fine")
	assert.Empty(t, loaded.Sources(fine), "reference to the skipped node is dropped")
}

func TestLoadUnpacked_MissingPropertyFileDegradesNode(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	dir := t.TempDir()
	fs := osfs.New(dir)

	doc := &manifest.Document{
		Version: manifest.FormatVersion,
		Nodes: []manifest.NodeRecord{
			{UID: "OBJECT_one", Name: "n", Properties: []manifest.PropertyRef{{File: "gone.json"}}},
		},
	}
	require.NoError(t, manifest.Write(fs, manifest.Filename, doc))

	loaded, result := engine.LoadSceneUnpacked(dir, nil, false)
	require.NoError(t, result.Err)
	assert.Empty(t, result.FailedNodes, "unreadable property list degrades, not skips")
	require.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.All()[0].Properties().IsEmpty())
}

func TestLoadUnpacked_UnsupportedVersion(t *testing.T) {
	engine := newTestIO(t, t.TempDir())
	dir := t.TempDir()
	require.NoError(t, manifest.Write(osfs.New(dir), manifest.Filename,
		&manifest.Document{Version: manifest.FormatVersion + 1}))

	_, result := engine.LoadSceneUnpacked(dir, nil, false)
	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Error(t, result.Err)
}
