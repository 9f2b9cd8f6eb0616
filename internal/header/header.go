// Package header extracts score metadata (title, key, tempo, time
// signature, capo, composer) from the region above the first system.
package header

import (
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"score-scan/internal/ocr"
	"score-scan/internal/raster"
	"score-scan/pkg/geometry"
)

// Metadata is the parsed header block. Zero fields mean "not found".
type Metadata struct {
	Title         string `json:"title,omitempty"`
	Key           string `json:"key,omitempty"`
	Tempo         int    `json:"tempo,omitempty"`
	TimeSignature string `json:"time_signature,omitempty"`
	Capo          int    `json:"capo,omitempty"`
	Composer      string `json:"composer,omitempty"`
	Lyricist      string `json:"lyricist,omitempty"`

	// InferredDefaults lists assumptions the pipeline fell back to
	// (e.g. "clef=treble") so the consumer can warn the user.
	InferredDefaults []string `json:"inferred_defaults,omitempty"`
}

// minRegionHeight is the smallest header crop worth sending to OCR.
const minRegionHeight = 20

// Ordered regex families; within a field the first match wins. The
// character classes accept both ASCII and full-width variants since
// header OCR runs with CJK language packs.
var (
	tempoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[♩JjＪ]\s*[=＝]\s*(\d{2,3})\b`),
		regexp.MustCompile(`[Tt]empo\s*[=:：]\s*(\d{2,3})\b`),
	}
	keyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[Kk]ey\s*[=:：]\s*([A-G][#♯b♭]?\s*(?:m(?:in(?:or)?)?|[Mm]aj(?:or)?)?)`),
		regexp.MustCompile(`1\s*[=＝]\s*([A-G][#♯b♭]?)`),
		regexp.MustCompile(`\b([A-G][#♯b♭]?)\s*(Major|Minor|m(?:aj)?)\b`),
	}
	timeSigPattern  = regexp.MustCompile(`\b(\d)\s*[/／]\s*(\d)\b`)
	capoPattern     = regexp.MustCompile(`[Cc]apo\s*[=:：]?\s*(\d{1,2})\b`)
	composerPattern = regexp.MustCompile(`(?:作曲[：:]|[Cc]omposer\s*[：:])\s*(\S.*)`)
	lyricistPattern = regexp.MustCompile(`作詞[：:]\s*(\S.*)`)
	bothPattern     = regexp.MustCompile(`詞曲[・·：:]\s*(\S.*)`)
)

// Extract crops the header region, runs OCR in single-block mode with
// the traditional-Chinese+English model, and parses the text.
func Extract(client ocr.Client, g *image.Gray, firstSystemTop int) (Metadata, error) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	bottom := firstSystemTop - 5
	if firstSystemTop <= 0 {
		bottom = h / 4
	}
	if bottom < minRegionHeight {
		return Metadata{}, nil
	}

	region := raster.Crop(g, geometry.NewRectInt(0, 0, w, bottom))
	res, err := client.Recognize(region, ocr.Options{
		Language: ocr.LangHeader,
		Mode:     ocr.SingleBlock,
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("header OCR: %w", err)
	}
	return ParseText(res.Text), nil
}

// ParseText parses header metadata out of OCR text, line by line.
func ParseText(text string) Metadata {
	var md Metadata
	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		matched := false

		if md.Tempo == 0 {
			for _, p := range tempoPatterns {
				if m := p.FindStringSubmatch(line); m != nil {
					md.Tempo, _ = strconv.Atoi(m[1])
					matched = true
					break
				}
			}
		}
		if md.Key == "" {
			for i, p := range keyPatterns {
				if m := p.FindStringSubmatch(line); m != nil {
					key := m[1]
					if i == 2 {
						// Pattern 3 captures root and quality separately.
						key = m[1] + m[2]
					}
					md.Key = NormalizeKey(key)
					matched = true
					break
				}
			}
		}
		if md.TimeSignature == "" {
			if m := timeSigPattern.FindStringSubmatch(line); m != nil {
				md.TimeSignature = m[1] + "/" + m[2]
				matched = true
			}
		}
		if md.Capo == 0 {
			if m := capoPattern.FindStringSubmatch(line); m != nil {
				md.Capo, _ = strconv.Atoi(m[1])
				matched = true
			}
		}
		if md.Composer == "" {
			if m := composerPattern.FindStringSubmatch(line); m != nil {
				md.Composer = strings.TrimSpace(m[1])
				matched = true
			}
		}
		if md.Lyricist == "" {
			if m := lyricistPattern.FindStringSubmatch(line); m != nil {
				md.Lyricist = strings.TrimSpace(m[1])
				matched = true
			}
		}
		if m := bothPattern.FindStringSubmatch(line); m != nil {
			who := strings.TrimSpace(m[1])
			if md.Composer == "" {
				md.Composer = who
			}
			if md.Lyricist == "" {
				md.Lyricist = who
			}
			matched = true
		}

		if !matched && md.Title == "" && isTitleCandidate(line) {
			md.Title = line
		}
	}
	return md
}

// NormalizeKey canonicalizes a key string: whitespace stripped, Unicode
// accidentals folded to ASCII, root uppercased, "minor" reduced to "m"
// and "Major" dropped.
func NormalizeKey(key string) string {
	s := strings.Join(strings.Fields(key), "")
	s = strings.ReplaceAll(s, "♯", "#")
	s = strings.ReplaceAll(s, "♭", "b")
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]

	root := s[:1]
	rest := s[1:]
	accidental := ""
	if strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "b") {
		accidental = rest[:1]
		rest = rest[1:]
	}

	switch strings.ToLower(rest) {
	case "m", "min", "minor":
		rest = "m"
	case "maj", "major":
		rest = ""
	}
	return root + accidental + rest
}

// isTitleCandidate rejects lines that are purely numeric or punctuation
// or shorter than two runes.
func isTitleCandidate(line string) bool {
	runes := []rune(line)
	if len(runes) < 2 {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
