// Package music defines the event stream emitted by the recognition
// pipeline and the pitch maps shared by the notation recognizers.
package music

import "fmt"

// EventKind discriminates the event variants.
type EventKind int

const (
	KindNote EventKind = iota
	KindRest
	KindTie
	KindBarline
)

// String returns the lowercase kind name.
func (k EventKind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindRest:
		return "rest"
	case KindTie:
		return "tie"
	case KindBarline:
		return "barline"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Duration is a note or rest duration.
type Duration int

const (
	Whole Duration = iota
	Half
	Quarter
	Eighth
	Sixteenth
	ThirtySecond
)

// String returns the duration name.
func (d Duration) String() string {
	switch d {
	case Whole:
		return "whole"
	case Half:
		return "half"
	case Quarter:
		return "quarter"
	case Eighth:
		return "eighth"
	case Sixteenth:
		return "sixteenth"
	case ThirtySecond:
		return "thirty-second"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Accidental is a pitch alteration attached to a note.
type Accidental int

const (
	NoAccidental Accidental = iota
	Sharp
	Flat
	Natural
)

// Semitones returns the pitch offset the accidental applies.
func (a Accidental) Semitones() int {
	switch a {
	case Sharp:
		return 1
	case Flat:
		return -1
	}
	return 0
}

// String returns the accidental name.
func (a Accidental) String() string {
	switch a {
	case Sharp:
		return "sharp"
	case Flat:
		return "flat"
	case Natural:
		return "natural"
	}
	return ""
}

// Technique is a guitar playing technique annotation.
type Technique int

const (
	NoTechnique Technique = iota
	Hammer
	Pull
	Slide
	Bend
)

// String returns the technique name.
func (t Technique) String() string {
	switch t {
	case Hammer:
		return "hammer"
	case Pull:
		return "pull"
	case Slide:
		return "slide"
	case Bend:
		return "bend"
	}
	return ""
}

// Piano range bounds for the MIDI sanity check. Notes outside this range
// are still emitted but flagged as low confidence by the orchestrator.
const (
	MIDIRangeLow  = 21
	MIDIRangeHigh = 108
)

// Event is one element of the recognized stream. Kind selects which
// fields are meaningful: ties and barlines carry only Index, rests carry
// Index and Duration, notes carry the full set.
type Event struct {
	Index      int       `json:"index"`
	Kind       EventKind `json:"kind"`
	MIDI       uint8     `json:"midi,omitempty"`
	Duration   Duration  `json:"duration,omitempty"`
	String     int       `json:"string,omitempty"`     // source string, 0 (high E) .. 5 (low E); -1 if not from tab
	Fret       int       `json:"fret,omitempty"`       // 0..24; -1 if not from tab
	Accidental Accidental `json:"accidental,omitempty"`
	Chord      string    `json:"chord,omitempty"`
	Technique  Technique `json:"technique,omitempty"`
	Confidence float64   `json:"confidence,omitempty"` // 0..100

	// X is the horizontal centre of the glyph inside its system, kept for
	// chord and technique association. Not part of the consumer contract.
	X float64 `json:"-"`
}

// NewNote builds a note event. String and fret default to "not from tab".
func NewNote(midi int, dur Duration, confidence float64) Event {
	return Event{
		Kind:       KindNote,
		MIDI:       clampMIDI(midi),
		Duration:   dur,
		String:     -1,
		Fret:       -1,
		Confidence: confidence,
	}
}

// NewRest builds a rest event.
func NewRest(dur Duration, confidence float64) Event {
	return Event{Kind: KindRest, Duration: dur, String: -1, Fret: -1, Confidence: confidence}
}

// NewTie builds a tie/extension event.
func NewTie() Event {
	return Event{Kind: KindTie, String: -1, Fret: -1}
}

// NewBarline builds a barline event.
func NewBarline() Event {
	return Event{Kind: KindBarline, String: -1, Fret: -1}
}

// InPianoRange reports whether a note's pitch falls in the 88-key range.
func (e Event) InPianoRange() bool {
	return e.Kind != KindNote || (int(e.MIDI) >= MIDIRangeLow && int(e.MIDI) <= MIDIRangeHigh)
}

func clampMIDI(midi int) uint8 {
	if midi < 0 {
		return 0
	}
	if midi > 127 {
		return 127
	}
	return uint8(midi)
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a MIDI value as scientific pitch notation, e.g. 64 -> "E4".
func NoteName(midi uint8) string {
	octave := int(midi)/12 - 1
	return fmt.Sprintf("%s%d", noteNames[int(midi)%12], octave)
}
