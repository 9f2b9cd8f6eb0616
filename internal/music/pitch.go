package music

import (
	"fmt"
	"strings"
)

// StandardTuning holds the open-string MIDI pitches of a guitar in
// standard tuning, indexed from the high E string (0) down to the low E
// string (5): E4 B3 G3 D3 A2 E2.
var StandardTuning = [6]int{64, 59, 55, 50, 45, 40}

// NumStrings is the number of guitar strings a tab system carries.
const NumStrings = 6

// MaxFret is the highest fret number accepted from tab OCR.
const MaxFret = 24

// FretToMIDI maps a fret on a string to its MIDI pitch, or an error when
// either index is out of range.
func FretToMIDI(stringIndex, fret int) (int, error) {
	if stringIndex < 0 || stringIndex >= NumStrings {
		return 0, fmt.Errorf("string index %d out of range", stringIndex)
	}
	if fret < 0 || fret > MaxFret {
		return 0, fmt.Errorf("fret %d out of range", fret)
	}
	return StandardTuning[stringIndex] + fret, nil
}

// Clef fixes the pitch anchor of a 5-line staff.
type Clef int

const (
	Treble Clef = iota // bottom line = E4
	Bass               // bottom line = G2
)

// AnchorMIDI returns the pitch of staff position 0 (the bottom line).
func (c Clef) AnchorMIDI() int {
	if c == Bass {
		return 43
	}
	return 64
}

// String returns the clef name.
func (c Clef) String() string {
	if c == Bass {
		return "bass"
	}
	return "treble"
}

// ParseClef parses a clef name, case-insensitively.
func ParseClef(name string) (Clef, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "treble":
		return Treble, nil
	case "bass":
		return Bass, nil
	}
	return Treble, fmt.Errorf("unknown clef %q", name)
}

// diatonic is the C-major semitone ladder used to walk staff positions
// and jianpu degrees: one entry per scale step, 12 semitones per octave.
var diatonic = [7]int{0, 2, 4, 5, 7, 9, 11}

// StaffPositionToMIDI converts a staff position (half-gap steps above
// the bottom line, negative below) into a MIDI pitch for the given
// clef. Positions walk the C-major ladder: the treble bottom line is E4
// (ladder index 2 above C4), the bass bottom line G2 (index 4 above C2).
func StaffPositionToMIDI(clef Clef, position int) int {
	base, index := 60, 2
	if clef == Bass {
		base, index = 36, 4
	}
	p := index + position
	octave := p / 7
	degree := p % 7
	if degree < 0 {
		degree += 7
		octave--
	}
	return base + 12*octave + diatonic[degree]
}

// ScaleType selects the degree-to-semitone map for jianpu.
type ScaleType int

const (
	Major ScaleType = iota
	Minor
	HarmonicMinor
	MelodicMinor
	Dorian
	Phrygian
	Lydian
	Mixolydian
	Locrian
)

var scaleIntervals = map[ScaleType][7]int{
	Major:         {0, 2, 4, 5, 7, 9, 11},
	Minor:         {0, 2, 3, 5, 7, 8, 10},
	HarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	MelodicMinor:  {0, 2, 3, 5, 7, 9, 11},
	Dorian:        {0, 2, 3, 5, 7, 9, 10},
	Phrygian:      {0, 1, 3, 5, 7, 8, 10},
	Lydian:        {0, 2, 4, 6, 7, 9, 11},
	Mixolydian:    {0, 2, 4, 5, 7, 9, 10},
	Locrian:       {0, 1, 3, 5, 6, 8, 10},
}

// String returns the scale name as accepted by ParseScaleType.
func (s ScaleType) String() string {
	switch s {
	case Minor:
		return "minor"
	case HarmonicMinor:
		return "harmonic minor"
	case MelodicMinor:
		return "melodic minor"
	case Dorian:
		return "dorian"
	case Phrygian:
		return "phrygian"
	case Lydian:
		return "lydian"
	case Mixolydian:
		return "mixolydian"
	case Locrian:
		return "locrian"
	}
	return "major"
}

// ParseScaleType parses a scale name, case-insensitively.
func ParseScaleType(name string) (ScaleType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "major":
		return Major, nil
	case "minor", "natural minor":
		return Minor, nil
	case "harmonic minor":
		return HarmonicMinor, nil
	case "melodic minor":
		return MelodicMinor, nil
	case "dorian":
		return Dorian, nil
	case "phrygian":
		return Phrygian, nil
	case "lydian":
		return Lydian, nil
	case "mixolydian":
		return Mixolydian, nil
	case "locrian":
		return Locrian, nil
	}
	return Major, fmt.Errorf("unknown scale type %q", name)
}

// DegreeInterval returns the semitone offset of jianpu degree 1..7 in
// the given scale.
func (s ScaleType) DegreeInterval(degree int) (int, error) {
	if degree < 1 || degree > 7 {
		return 0, fmt.Errorf("scale degree %d out of range", degree)
	}
	iv, ok := scaleIntervals[s]
	if !ok {
		iv = scaleIntervals[Major]
	}
	return iv[degree-1], nil
}

// rootOffsets maps key roots to semitone offsets above C.
var rootOffsets = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// KeyBaseMIDI returns the MIDI pitch of jianpu degree 1 (middle octave)
// for a key name like "C", "F#", "Bb" or "Am". A trailing "m" is
// accepted and ignored for the base pitch; the minor quality is carried
// by the scale type instead.
func KeyBaseMIDI(key string) (int, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return 60, nil
	}
	root := strings.ToUpper(k[:1])
	offset, ok := rootOffsets[root]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", key)
	}
	rest := k[1:]
	if strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "♯") {
		offset++
	} else if strings.HasPrefix(rest, "b") || strings.HasPrefix(rest, "♭") {
		offset--
	}
	// Middle C octave: degree 1 of C is C4 = 60.
	return 60 + ((offset%12)+12)%12, nil
}

// JianpuMIDI computes the pitch of a jianpu digit in the given key and
// scale, with octave offset (dots) and accidental semitones applied.
func JianpuMIDI(key string, scale ScaleType, degree, octave, accidental int) (int, error) {
	base, err := KeyBaseMIDI(key)
	if err != nil {
		return 0, err
	}
	interval, err := scale.DegreeInterval(degree)
	if err != nil {
		return 0, err
	}
	return base + interval + 12*octave + accidental, nil
}
