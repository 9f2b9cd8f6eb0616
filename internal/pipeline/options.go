package pipeline

import (
	"errors"
	"fmt"

	"score-scan/internal/music"
	"score-scan/internal/preprocess"
)

// ScoreType selects which notation the pipeline reads. AutoType follows
// whatever the layout detector finds; the explicit types restrict
// recognition to one notation even on mixed pages.
type ScoreType int

const (
	AutoType ScoreType = iota
	TabType
	StaffType
	JianpuType
	CombinedType // staff and tab of paired systems both recognized
)

// String returns the score type name as accepted by ParseScoreType.
func (t ScoreType) String() string {
	switch t {
	case TabType:
		return "tab"
	case StaffType:
		return "staff"
	case JianpuType:
		return "jianpu"
	case CombinedType:
		return "combined"
	}
	return "auto"
}

// ParseScoreType parses a score type name, case-sensitively matching the
// String values.
func ParseScoreType(name string) (ScoreType, error) {
	switch name {
	case "", "auto":
		return AutoType, nil
	case "tab":
		return TabType, nil
	case "staff":
		return StaffType, nil
	case "jianpu":
		return JianpuType, nil
	case "combined":
		return CombinedType, nil
	}
	return AutoType, fmt.Errorf("unknown score type %q", name)
}

// Progress receives phase checkpoints during recognition. Percent is
// monotonically non-decreasing, 0..100.
type Progress interface {
	Report(phase string, percent int)
}

// ProgressFunc adapts a function to the Progress interface.
type ProgressFunc func(phase string, percent int)

// Report calls the function.
func (f ProgressFunc) Report(phase string, percent int) { f(phase, percent) }

// Options configures a recognition run. DefaultOptions gives the zero
// config most callers want.
type Options struct {
	Type ScoreType

	// Key and Scale seed jianpu pitch mapping when the header does not
	// provide a key.
	Key   string
	Scale music.ScaleType

	// Clef anchors staff pitch reading.
	Clef music.Clef

	DetectHeader        bool
	DetectChords        bool
	DetectTechniques    bool
	DetectOctaveDots    bool
	DetectDurationLines bool

	// RemoveStaffLines erases ruled lines before glyph analysis. Off is
	// only useful for debugging recognizer behaviour on raw strips.
	RemoveStaffLines bool

	Preprocess preprocess.Options

	Progress Progress
	Verbose  bool
}

// DefaultOptions returns the standard recognition settings: auto type,
// key of C, treble clef, every detection enabled.
func DefaultOptions() Options {
	return Options{
		Key:                 "C",
		DetectHeader:        true,
		DetectChords:        true,
		DetectTechniques:    true,
		DetectOctaveDots:    true,
		DetectDurationLines: true,
		RemoveStaffLines:    true,
		Preprocess:          preprocess.DefaultOptions(),
	}
}

// Sentinel errors callers can test with errors.Is.
var (
	// ErrNoLines means neither staff nor tab line work was found and the
	// jianpu fallback found no text rows either.
	ErrNoLines = errors.New("no staff or tab lines detected")
	// ErrNoNotes means systems were found but none yielded an event.
	ErrNoNotes = errors.New("no notes recognized")
	// ErrCancelled wraps context cancellation; the partial result
	// accumulated so far is still returned alongside it.
	ErrCancelled = errors.New("recognition cancelled")
)

// WarningCode classifies non-fatal findings.
type WarningCode string

const (
	WarnImageTooLarge WarningCode = "image_too_large"
	WarnLowConfidence WarningCode = "low_confidence"
	WarnNoNotes       WarningCode = "no_notes"
	WarnOutOfRange    WarningCode = "out_of_range"
	WarnHeaderFailed  WarningCode = "header_failed"
	WarnSystemFailed  WarningCode = "system_failed"
)

// Warning is a non-fatal finding attached to the result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// lowConfidenceFloor is the mean confidence below which the result
// carries a WarnLowConfidence warning.
const lowConfidenceFloor = 30.0
