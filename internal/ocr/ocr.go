// Package ocr adapts the Tesseract text engine behind a narrow client
// interface so the notation recognizers stay independent of the engine.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"unicode/utf8"

	"github.com/otiai10/gosseract/v2"

	"score-scan/pkg/geometry"
)

// Character whitelists used by the recognizers.
const (
	// TabChars restricts tab strip OCR to fret digits and line noise.
	TabChars = "0123456789 -|"
	// JianpuChars covers numbered notation plus octave dots and accidentals.
	JianpuChars = "0123456789-|.·()[]#b♯♭"
	// TechniqueChars covers the marks between a staff and its tab.
	TechniqueChars = "HPSBhpsb/\\~"
)

// Languages passed to the engine per region kind.
const (
	LangEnglish = "eng"
	LangHeader  = "chi_tra+eng"
	LangJianpu  = "chi_sim+eng"
)

// PageMode mirrors the Tesseract page segmentation modes the pipeline uses.
type PageMode int

const (
	SingleBlock PageMode = iota
	SingleLine
	SingleWord
	SparseText
)

// Options configures one recognition call.
type Options struct {
	Language  string
	Mode      PageMode
	Whitelist string
}

// Word is a word-level recognition result with its bounding box.
type Word struct {
	Text       string
	Box        geometry.RectInt
	Confidence float64
}

// CenterX returns the horizontal centre of the word box.
func (w Word) CenterX() float64 { return w.Box.CenterX() }

// CenterY returns the vertical centre of the word box.
func (w Word) CenterY() float64 { return w.Box.CenterY() }

// CharWidth estimates the width of one character in the word.
func (w Word) CharWidth() float64 {
	n := utf8.RuneCountInString(w.Text)
	if n == 0 {
		return float64(w.Box.Width())
	}
	return float64(w.Box.Width()) / float64(n)
}

// CharHeight returns the glyph height of the word.
func (w Word) CharHeight() float64 { return float64(w.Box.Height()) }

// Result is the output of one recognition call.
type Result struct {
	Text       string
	Confidence float64 // 0..100, mean over words
	Words      []Word
}

// Client is the recognizer capability the pipeline consumes. Clients are
// stateful and must not be shared across concurrent calls.
type Client interface {
	Recognize(img image.Image, opts Options) (Result, error)
	Close() error
}

// Engine is the Tesseract-backed Client.
type Engine struct {
	client *gosseract.Client
	lang   string
}

// NewEngine creates a Tesseract client configured for score OCR.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(LangEnglish); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Disable dictionary-based word correction: fret digits and chord
	// symbols aren't dictionary words and must not be "fixed".
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")
	_ = client.SetVariable("language_model_penalty_non_freq_dict_word", "0")

	return &Engine{client: client, lang: LangEnglish}, nil
}

// Close releases the engine worker.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (m PageMode) gosseract() gosseract.PageSegMode {
	switch m {
	case SingleLine:
		return gosseract.PSM_SINGLE_LINE
	case SingleWord:
		return gosseract.PSM_SINGLE_WORD
	case SparseText:
		return gosseract.PSM_SPARSE_TEXT
	default:
		return gosseract.PSM_SINGLE_BLOCK
	}
}

// Recognize runs one OCR pass over the image.
func (e *Engine) Recognize(img image.Image, opts Options) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, fmt.Errorf("empty image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = LangEnglish
	}
	if lang != e.lang {
		if err := e.client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return Result{}, fmt.Errorf("failed to set OCR language: %w", err)
		}
		e.lang = lang
	}

	if err := e.client.SetPageSegMode(opts.Mode.gosseract()); err != nil {
		return Result{}, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(opts.Whitelist); err != nil && opts.Whitelist != "" {
		return Result{}, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Result{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("OCR failed: %w", err)
	}

	res := Result{Text: strings.TrimSpace(text)}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil {
		var confSum float64
		for _, box := range boxes {
			word := strings.TrimSpace(box.Word)
			if word == "" {
				continue
			}
			res.Words = append(res.Words, Word{
				Text: word,
				Box: geometry.RectInt{
					X0: box.Box.Min.X,
					Y0: box.Box.Min.Y,
					X1: box.Box.Max.X,
					Y1: box.Box.Max.Y,
				},
				Confidence: box.Confidence,
			})
			confSum += box.Confidence
		}
		if len(res.Words) > 0 {
			res.Confidence = confSum / float64(len(res.Words))
		}
	}

	return res, nil
}
