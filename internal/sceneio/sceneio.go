// Package sceneio is the scene persistence orchestrator. Save walks the
// node set, assigns identifiers, delegates payloads to the serializer
// registry, writes the index manifest and packs everything into a single
// archive. Load reverses the pipeline. Both sides prefer a usable
// partial result over an all-or-nothing failure, and both guarantee the
// staging directory is gone on every exit path.
package sceneio

import (
	"log/slog"

	"github.com/diorama-project/diorama/internal/archive"
	"github.com/diorama-project/diorama/internal/scene"
)

// Phase tracks how far an operation got. Cleaned is always reached
// before a terminal phase whenever a staging area was created.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidatingInputs
	PhaseStagingCreated
	PhaseGraphBuilt
	PhaseNodesSerialized
	PhaseDocumentWritten
	PhaseArchived
	PhaseUnpacked
	PhaseDocumentParsed
	PhaseGraphReconstructed
	PhaseCleaned
	PhaseDone
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "Idle",
	PhaseValidatingInputs:   "ValidatingInputs",
	PhaseStagingCreated:     "StagingCreated",
	PhaseGraphBuilt:         "GraphBuilt",
	PhaseNodesSerialized:    "NodesSerialized",
	PhaseDocumentWritten:    "DocumentWritten",
	PhaseArchived:           "Archived",
	PhaseUnpacked:           "Unpacked",
	PhaseDocumentParsed:     "DocumentParsed",
	PhaseGraphReconstructed: "GraphReconstructed",
	PhaseCleaned:            "Cleaned",
	PhaseDone:               "Done",
	PhaseFailed:             "Failed",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "Unknown"
}

// FailedProperty identifies one property that could not be serialized.
type FailedProperty struct {
	Node   string
	List   string // "node", "data", or the view-context name
	Key    string
	Reason string
}

// SaveResult is the accumulator for one save pass. Soft failures collect
// here without blocking the operation.
type SaveResult struct {
	Phase            Phase
	FailedNodes      []*scene.Node
	FailedProperties []FailedProperty
}

// LoadResult is the accumulator for one load pass.
type LoadResult struct {
	Phase          Phase
	UnpackFailures []archive.EntryFailure
	FailedNodes    []string // UIDs that could not be reconstructed
	Err            error    // hard error, nil when the load reached Done
}

// SceneIO saves scene graphs to archives and reconstructs them.
// A single instance may run distinct operations from separate goroutines
// (each allocates its own staging area), but callers must serialize
// operations that share a destination path or a mutable Storage.
type SceneIO struct {
	logger      *slog.Logger
	stagingRoot string
	writer      string
	level       int
	codec       *archive.Codec
}

// Option configures a SceneIO.
type Option func(*SceneIO)

func WithLogger(l *slog.Logger) Option {
	return func(s *SceneIO) { s.logger = l }
}

// WithStagingRoot overrides the platform temp root for staging areas.
func WithStagingRoot(root string) Option {
	return func(s *SceneIO) { s.stagingRoot = root }
}

// WithCompressionLevel sets the archive deflate level.
func WithCompressionLevel(level int) Option {
	return func(s *SceneIO) { s.level = level }
}

func New(opts ...Option) *SceneIO {
	s := &SceneIO{
		logger: slog.Default(),
		writer: "diorama",
		level:  archive.DefaultCompressionLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "sceneio"))
	s.codec = archive.NewCodec(s.level, s.logger)
	return s
}
