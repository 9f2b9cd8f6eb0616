// Package pipeline orchestrates the full recognition run: preprocess,
// detect line work, group systems, extract the header, dispatch each
// system to its notation recognizer and merge the event streams.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/google/uuid"

	"score-scan/internal/header"
	"score-scan/internal/jianpu"
	"score-scan/internal/layout"
	"score-scan/internal/music"
	"score-scan/internal/ocr"
	"score-scan/internal/preprocess"
	"score-scan/internal/raster"
	"score-scan/internal/staff"
	"score-scan/internal/staffline"
	"score-scan/internal/tab"
)

// Result is the output of one recognition run.
type Result struct {
	RunID       string          `json:"run_id"`
	Type        string          `json:"type"`
	Events      []music.Event   `json:"events"`
	Metadata    header.Metadata `json:"metadata"`
	Confidence  float64         `json:"confidence"`
	SystemCount int             `json:"system_count"`
	Systems     []SystemInfo    `json:"systems"`
	Warnings    []Warning       `json:"warnings,omitempty"`
}

// SystemInfo describes one recognized system in document order.
type SystemInfo struct {
	Type   string `json:"type"`
	Top    int    `json:"top"`
	Bottom int    `json:"bottom"`
}

func systemInfos(systems []layout.System) []SystemInfo {
	out := make([]SystemInfo, len(systems))
	for i, s := range systems {
		out[i] = SystemInfo{Type: s.Type.String(), Top: s.TopY, Bottom: s.BottomY}
	}
	return out
}

// Pipeline runs recognitions with a fixed option set. A Pipeline may be
// reused across calls but not concurrently: the OCR engine underneath
// is stateful.
type Pipeline struct {
	opts   Options
	client ocr.Client // injected; nil means open an engine lazily
}

// New creates a pipeline that opens its own OCR engine on first use,
// once per Recognize call.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// NewWithClient creates a pipeline on a caller-owned OCR client. The
// caller is responsible for closing it.
func NewWithClient(opts Options, client ocr.Client) *Pipeline {
	return &Pipeline{opts: opts, client: client}
}

// RecognizeFile loads an image file and recognizes it.
func (p *Pipeline) RecognizeFile(ctx context.Context, path string) (*Result, error) {
	img, err := raster.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Recognize(ctx, img)
}

// RecognizeBytes decodes an encoded image buffer and recognizes it.
func (p *Pipeline) RecognizeBytes(ctx context.Context, data []byte) (*Result, error) {
	img, err := raster.Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Recognize(ctx, img)
}

// runState carries the per-call buffers shared by recognition passes.
type runState struct {
	pre     *preprocess.Result
	systems []layout.System // line-based systems in document order

	// Jianpu row segmentation is computed lazily on first use; the
	// speckle-removed canvas feeds both row detection and recognition.
	jianpuCanvas  *image.Gray
	jianpuSystems []layout.System

	getClient func() (ocr.Client, error)
	key       string
}

func (s *runState) ensureJianpu() {
	if s.jianpuCanvas == nil {
		s.jianpuCanvas = preprocess.Open(s.pre.Processed, 1)
		s.jianpuSystems = layout.JianpuRows(s.jianpuCanvas)
	}
}

// Recognize runs the full pipeline on a decoded image. On cancellation
// the result holds the events accumulated so far and the error wraps
// ErrCancelled. A result with zero events comes back with ErrNoNotes;
// it still carries metadata and warnings.
func (p *Pipeline) Recognize(ctx context.Context, src image.Image) (res *Result, err error) {
	res = &Result{RunID: uuid.NewString(), Type: p.opts.Type.String()}

	p.report("load", 5)
	if err := raster.Validate(src); err != nil {
		return nil, err
	}
	if raster.Oversized(src) {
		res.warn(WarnImageTooLarge, fmt.Sprintf("image exceeds %d px, downscaling", raster.MaxDimension))
	}

	pre, err := preprocess.Run(src, p.opts.Preprocess)
	if err != nil {
		return nil, err
	}
	p.report("preprocess", 25)

	// The OCR engine opens lazily: a staff-only page never needs one
	// unless header extraction is on.
	var opened ocr.Client
	defer func() {
		if opened != nil {
			opened.Close()
		}
	}()
	state := &runState{
		pre: pre,
		getClient: func() (ocr.Client, error) {
			if p.client != nil {
				return p.client, nil
			}
			if opened == nil {
				engine, err := ocr.NewEngine()
				if err != nil {
					return nil, fmt.Errorf("failed to open OCR engine: %w", err)
				}
				opened = engine
			}
			return opened, nil
		},
	}

	lines := staffline.DetectLines(pre.Processed)
	groups := staffline.GroupLines(lines)
	state.systems = layout.GroupSystems(groups)
	p.report("line detect", 40)

	if len(state.systems) == 0 || p.opts.Type == JianpuType {
		state.ensureJianpu()
		if len(state.systems) == 0 {
			state.systems = state.jianpuSystems
		}
	}
	if len(state.systems) == 0 {
		return res, ErrNoLines
	}
	p.report("systems grouped", 60)

	res.Metadata = p.extractHeader(state, res)
	state.key = res.Metadata.Key
	if state.key == "" {
		state.key = p.opts.Key
		if state.key == "" {
			state.key = "C"
		}
		res.Metadata.InferredDefaults = append(res.Metadata.InferredDefaults, "key="+state.key)
	}

	events, covered, typ, runErr := p.runAuto(ctx, state, res)
	for i := range events {
		events[i].Index = i
	}
	res.Events = events
	res.SystemCount = len(covered)
	res.Systems = systemInfos(covered)
	res.Type = typ
	res.Confidence = meanConfidence(events)

	p.finishWarnings(res)
	if runErr != nil {
		return res, runErr
	}
	p.report("complete", 100)
	if len(res.Events) == 0 {
		return res, ErrNoNotes
	}
	return res, nil
}

// runAuto executes the recognition pass for the configured type. In
// auto mode the combined pass runs first; if it yields nothing, the
// single-notation passes run and the highest-confidence non-empty one
// wins.
func (p *Pipeline) runAuto(ctx context.Context, state *runState, res *Result) ([]music.Event, []layout.System, string, error) {
	mode := p.opts.Type
	if mode != AutoType {
		events, err := p.runSystems(ctx, state, mode, res)
		return events, p.systemsFor(state, mode), typeName(mode, state), err
	}

	events, err := p.runSystems(ctx, state, CombinedType, res)
	if err != nil || len(events) > 0 {
		return events, state.systems, typeName(CombinedType, state), err
	}

	if p.opts.Verbose {
		log.Printf("pipeline: combined pass empty, retrying single notations")
	}
	best := events
	bestMode := CombinedType
	bestConf := -1.0
	for _, m := range []ScoreType{TabType, StaffType, JianpuType} {
		retry, err := p.runSystems(ctx, state, m, res)
		if err != nil {
			return best, p.systemsFor(state, bestMode), typeName(bestMode, state), err
		}
		if conf := meanConfidence(retry); len(retry) > 0 && conf > bestConf {
			best, bestMode, bestConf = retry, m, conf
		}
	}
	return best, p.systemsFor(state, bestMode), typeName(bestMode, state), nil
}

// systemsFor returns the system list a mode works on: jianpu reads the
// text-row segmentation, everything else the line-based grouping.
func (p *Pipeline) systemsFor(state *runState, mode ScoreType) []layout.System {
	if mode == JianpuType {
		state.ensureJianpu()
		return state.jianpuSystems
	}
	return state.systems
}

// typeName resolves the reported notation type: combined when any
// staff+tab system is present, else the majority system type.
func typeName(mode ScoreType, state *runState) string {
	if mode != AutoType && mode != CombinedType {
		return mode.String()
	}
	counts := make(map[layout.SystemType]int)
	for _, s := range state.systems {
		if s.Type == layout.StaffTab {
			return "combined"
		}
		counts[s.Type]++
	}
	best := layout.Staff
	for t, n := range counts {
		if n > counts[best] || (n == counts[best] && t < best) {
			best = t
		}
	}
	return best.String()
}

// runSystems recognizes every system the mode covers, in document
// order, isolating per-system failures and separating systems with a
// barline event. The returned events carry dense indices from 0.
func (p *Pipeline) runSystems(ctx context.Context, state *runState, mode ScoreType, res *Result) ([]music.Event, error) {
	systems := p.systemsFor(state, mode)

	var events []music.Event
	next := 0
	for i, sys := range systems {
		if ctx.Err() != nil {
			return events, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		p.report("recognize systems", 60+35*i/len(systems))

		sysEvents, err := p.runSystem(state, sys, mode, next)
		if err != nil {
			res.warn(WarnSystemFailed, fmt.Sprintf("system %d (%s): %v", i, sys.Type, err))
			if p.opts.Verbose {
				log.Printf("pipeline: system %d failed: %v", i, err)
			}
			continue
		}
		if sysEvents == nil {
			continue // system not covered by this mode
		}

		client, cerr := state.getClient()
		if p.opts.DetectChords && cerr == nil {
			attachChords(client, state.pre.Original, sys.ChordBand, sysEvents)
		}
		if p.opts.DetectTechniques && cerr == nil && sys.Type == layout.StaffTab && sys.TechniqueBand != nil {
			attachTechniques(client, state.pre.Original, *sys.TechniqueBand, sysEvents)
		}

		events = append(events, sysEvents...)
		next += len(sysEvents)
		if i < len(systems)-1 && len(sysEvents) > 0 {
			sep := music.NewBarline()
			sep.Index = next
			events = append(events, sep)
			next++
		}
	}
	return events, nil
}

// runSystem dispatches one system to its recognizer. A nil, nil return
// means the mode does not cover this system type.
func (p *Pipeline) runSystem(state *runState, sys layout.System, mode ScoreType, baseIndex int) ([]music.Event, error) {
	switch sys.Type {
	case layout.Tab, layout.StaffTab:
		// Tab is authoritative for paired systems: it carries string and
		// fret, which the staff cannot.
		wantTab := mode == AutoType || mode == CombinedType || mode == TabType
		if sys.Type == layout.StaffTab && mode == StaffType {
			return p.staffRecognizer().Recognize(state.pre.Processed, sys.StaffLines, sys.StaffSpacing, baseIndex)
		}
		if !wantTab || len(sys.TabLines) == 0 {
			return nil, nil
		}
		client, err := state.getClient()
		if err != nil {
			return nil, err
		}
		r := tab.New(client)
		r.RemoveLines = p.opts.RemoveStaffLines
		return r.Recognize(state.pre.Original, sys.TabLines, sys.TabSpacing, baseIndex)

	case layout.Staff:
		if mode != AutoType && mode != CombinedType && mode != StaffType {
			return nil, nil
		}
		return p.staffRecognizer().Recognize(state.pre.Processed, sys.StaffLines, sys.StaffSpacing, baseIndex)

	case layout.Jianpu:
		if mode != AutoType && mode != CombinedType && mode != JianpuType {
			return nil, nil
		}
		client, err := state.getClient()
		if err != nil {
			return nil, err
		}
		state.ensureJianpu()
		r := jianpu.New(client, state.key, p.opts.Scale)
		r.DetectOctaveDots = p.opts.DetectOctaveDots
		r.DetectDurationLines = p.opts.DetectDurationLines
		r.DetectChords = p.opts.DetectChords
		return r.Recognize(state.jianpuCanvas, layout.Band{Top: sys.TopY, Bottom: sys.BottomY}, baseIndex)
	}
	return nil, nil
}

func (p *Pipeline) staffRecognizer() *staff.Recognizer {
	r := staff.New(p.opts.Clef)
	r.RemoveLines = p.opts.RemoveStaffLines
	return r
}

// extractHeader crops and parses the region above the first system.
// Header failures downgrade to a warning; recognition continues.
func (p *Pipeline) extractHeader(state *runState, res *Result) header.Metadata {
	var md header.Metadata
	if !p.opts.DetectHeader {
		return md
	}
	client, err := state.getClient()
	if err != nil {
		res.warn(WarnHeaderFailed, err.Error())
		return md
	}
	md, err = header.Extract(client, state.pre.Original, state.systems[0].TopY)
	if err != nil {
		res.warn(WarnHeaderFailed, err.Error())
	}
	return md
}

// finishWarnings adds the aggregate warnings computed from the final
// event stream.
func (p *Pipeline) finishWarnings(res *Result) {
	if len(res.Events) == 0 {
		res.warn(WarnNoNotes, "no notes recognized")
		return
	}
	if res.Confidence < lowConfidenceFloor {
		res.warn(WarnLowConfidence, fmt.Sprintf("mean confidence %.1f below %.0f", res.Confidence, lowConfidenceFloor))
	}
	outOfRange := 0
	for _, ev := range res.Events {
		if !ev.InPianoRange() {
			outOfRange++
		}
	}
	if outOfRange > 0 {
		res.warn(WarnOutOfRange, fmt.Sprintf("%d notes outside the piano range", outOfRange))
	}

	hasStaff := false
	for _, s := range res.Events {
		if s.Kind == music.KindNote && s.String < 0 && s.Fret < 0 {
			hasStaff = true
			break
		}
	}
	if hasStaff && res.Type != "jianpu" {
		res.Metadata.InferredDefaults = append(res.Metadata.InferredDefaults, "clef="+p.opts.Clef.String())
	}
}

func (r *Result) warn(code WarningCode, msg string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: msg})
}

func (p *Pipeline) report(phase string, percent int) {
	if p.opts.Progress != nil {
		p.opts.Progress.Report(phase, percent)
	}
}

// meanConfidence averages the confidences of events that carry one.
func meanConfidence(events []music.Event) float64 {
	sum, n := 0.0, 0
	for _, ev := range events {
		if ev.Confidence > 0 {
			sum += ev.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
