// Package pipeline turns a dialog history into a stream of narrated paragraphs:
// one completion call, paragraph segmentation, then sequential synthesis and
// emission of one record per paragraph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/storycast/internal/prompt"
	"github.com/nextlevelbuilder/storycast/internal/providers"
	"github.com/nextlevelbuilder/storycast/internal/themes"
	"github.com/nextlevelbuilder/storycast/internal/tts"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// Sink receives the records of one stream. Write must not return until the
// record has been handed to the transport, so a slow reader slows the run.
type Sink interface {
	Write(ctx context.Context, rec protocol.StreamRecord) error
	Close() error
}

// Completer produces one assistant message.
type Completer interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

// Synthesizer renders one paragraph to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts tts.Options) (*tts.SynthResult, error)
}

// Archiver stores synthesized clips out of band. It must not block the stream.
type Archiver interface {
	Archive(runID string, index int, clip *tts.SynthResult)
}

// ImageFitter rewrites the completion messages so inline images suit the
// vision model. The echoed history is never passed through it.
type ImageFitter interface {
	Messages(ctx context.Context, msgs []protocol.DialogMessage) []protocol.DialogMessage
}

// Request is one invocation.
type Request struct {
	RunID     string
	History   protocol.DialogHistory
	Mode      prompt.Mode
	Task      prompt.VisualTask
	LocalTime *time.Time
	Age       int
	Voice     string // provider voice; empty uses the synthesizer default
	Model     string // empty uses the provider default
}

// Result summarizes a finished run.
type Result struct {
	State      State
	Themes     []themes.Tag
	Paragraphs int
	Emitted    int
	Skipped    int
	Usage      *providers.Usage
}

// Config wires a Pipeline.
type Config struct {
	Completer          Completer
	Synthesizer        Synthesizer // nil disables audio
	Archiver           Archiver    // nil disables archiving
	Images             ImageFitter // nil sends images as received
	Detector           *themes.Detector
	MaxParagraphLength int // default tts.DefaultMaxLength
	Welcome            string
}

// Pipeline is safe for concurrent use; each Run owns its own state.
type Pipeline struct {
	completer Completer
	synth     Synthesizer
	archiver  Archiver
	images    ImageFitter
	detector  *themes.Detector
	maxLength int
	welcome   atomic.Value // string
	tracer    trace.Tracer
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		completer: cfg.Completer,
		synth:     cfg.Synthesizer,
		archiver:  cfg.Archiver,
		images:    cfg.Images,
		detector:  cfg.Detector,
		maxLength: cfg.MaxParagraphLength,
		tracer:    otel.Tracer("github.com/nextlevelbuilder/storycast/internal/pipeline"),
	}
	if p.detector == nil {
		p.detector = themes.NewDetector()
	}
	if p.maxLength <= 0 {
		p.maxLength = tts.DefaultMaxLength
	}
	p.welcome.Store(cfg.Welcome)
	return p
}

// SetWelcome replaces the optional welcome assistant turn. Empty disables it.
func (p *Pipeline) SetWelcome(s string) { p.welcome.Store(s) }

// Welcome returns the current welcome turn.
func (p *Pipeline) Welcome() string { return p.welcome.Load().(string) }

// Validate checks the entry invariants of req.
func Validate(req Request) error {
	if err := req.History.Validate(); err != nil {
		return err
	}
	if req.Mode != prompt.ModeStory && req.Mode != prompt.ModeQnA {
		return protocol.Invalid("query_type", fmt.Sprintf("unknown mode %q", req.Mode))
	}
	if req.Task != "" {
		if _, err := prompt.ParseVisualTask(string(req.Task)); err != nil {
			return protocol.Invalid("visual_task", err.Error())
		}
	}
	return nil
}

// Run executes one invocation against sink.
//
// If req is invalid Run returns a *protocol.ValidationError and never touches
// sink. Otherwise sink is closed before Run returns, on every path. Upstream
// failures produce exactly one terminal record and a *StageError.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (res Result, err error) {
	if err := Validate(req); err != nil {
		return Result{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("storycast.run_id", req.RunID),
		attribute.String("storycast.mode", string(req.Mode)),
		attribute.Int("storycast.history_len", len(req.History)),
	))
	r := &run{p: p, req: req, sink: sink, history: req.History.Clone(), state: StateValidating}
	defer func() {
		res = r.result
		res.State = r.state
		span.SetAttributes(
			attribute.Int("storycast.paragraphs", res.Paragraphs),
			attribute.Int("storycast.emitted", res.Emitted),
			attribute.Int("storycast.skipped", res.Skipped),
		)
		var se *StageError
		if errors.As(err, &se) {
			span.SetAttributes(attribute.String("storycast.error_class", string(se.Class)))
			span.SetStatus(codes.Error, se.Error())
		}
		span.End()
	}()
	defer r.close()
	defer func() {
		if rec := recover(); rec != nil {
			err = r.fail(ctx, StageEmit, fmt.Errorf("pipeline panic: %v", rec))
		}
	}()

	err = r.execute(ctx)
	return r.result, err
}

type run struct {
	p        *Pipeline
	req      Request
	sink     Sink
	history  protocol.DialogHistory
	reply    string
	appended bool
	state    State
	result   Result
	closed   bool
}

func (r *run) execute(ctx context.Context) error {
	latest := r.history.LatestUser()
	modality := prompt.Textual
	if r.history.IsVisual() {
		modality = prompt.Visual
	}
	tags := r.p.detector.Detect(latest.Text())
	r.result.Themes = tags

	system := prompt.Compose(prompt.Input{
		Mode:      r.req.Mode,
		Modality:  modality,
		Task:      r.req.Task,
		LocalTime: r.req.LocalTime,
		Age:       r.req.Age,
		Themes:    tags,
	})
	msgs := prompt.Messages(system, r.p.Welcome(), r.history)
	if modality == prompt.Visual && r.p.images != nil {
		msgs = r.p.images.Messages(ctx, msgs)
	}
	params := prompt.Params(r.req.Mode)

	r.state = StateGenerating
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("pipeline prompt", "run_id", r.req.RunID, "themes", tags, "modality", modality.String(),
			"prompt_tokens", providers.CountTokens(msgs))
	}
	resp, err := r.complete(ctx, providers.ChatRequest{
		Messages: msgs,
		Model:    r.req.Model,
		Options: map[string]interface{}{
			providers.OptMaxTokens:   params.MaxTokens,
			providers.OptTemperature: params.Temperature,
		},
	})
	if err != nil {
		return r.fail(ctx, StageGenerate, err)
	}
	r.reply = resp.Content
	r.result.Usage = resp.Usage

	r.state = StateSegmenting
	paragraphs := Segment(resp.Content)
	r.result.Paragraphs = len(paragraphs)

	r.state = StateEmitting
	for _, para := range paragraphs {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, StageEmit, err)
		}
		if n := utf8.RuneCountInString(para.Text); n > r.p.maxLength {
			r.skip(para, fmt.Errorf("%w: %d > %d characters", tts.ErrInputTooLong, n, r.p.maxLength))
			continue
		}

		var audio string
		if r.p.synth != nil {
			clip, err := r.synthesize(ctx, para)
			if errors.Is(err, tts.ErrInputTooLong) || errors.Is(err, tts.ErrNothingToSay) {
				r.skip(para, err)
				continue
			}
			if err != nil {
				return r.fail(ctx, StageSynthesize, err)
			}
			audio = clip.DataURI()
			if r.p.archiver != nil {
				r.p.archiver.Archive(r.req.RunID, r.result.Emitted, clip)
			}
		}

		r.appendReply()
		unit := protocol.ParagraphUnit{Index: r.result.Emitted, Text: para.Text, Audio: audio}
		if err := r.sink.Write(ctx, protocol.NewProgressRecord(r.history, unit)); err != nil {
			return r.fail(ctx, StageEmit, fmt.Errorf("write record %d: %w", unit.Index, err))
		}
		r.result.Emitted++
	}

	slog.Info("story stream completed", "run_id", r.req.RunID, "mode", r.req.Mode,
		"paragraphs", r.result.Paragraphs, "emitted", r.result.Emitted, "skipped", r.result.Skipped)
	return nil
}

func (r *run) complete(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	ctx, span := r.p.tracer.Start(ctx, "pipeline.completion", trace.WithAttributes(
		attribute.Int("storycast.messages", len(req.Messages)),
	))
	defer span.End()

	resp, err := r.p.completer.Chat(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp == nil {
		err := providers.ErrEmptyCompletion
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("storycast.finish_reason", resp.FinishReason))
	return resp, nil
}

func (r *run) synthesize(ctx context.Context, para Paragraph) (*tts.SynthResult, error) {
	ctx, span := r.p.tracer.Start(ctx, "pipeline.synthesize", trace.WithAttributes(
		attribute.Int("storycast.paragraph_index", para.Index),
		attribute.Int("storycast.paragraph_chars", utf8.RuneCountInString(para.Text)),
	))
	defer span.End()

	clip, err := r.p.synth.Synthesize(ctx, para.Text, tts.Options{Voice: r.req.Voice})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return clip, nil
}

func (r *run) skip(para Paragraph, reason error) {
	r.result.Skipped++
	slog.Warn("pipeline.paragraph_skipped", "run_id", r.req.RunID, "index", para.Index,
		"chars", utf8.RuneCountInString(para.Text), "reason", reason)
}

// appendReply adds the full assistant message to the history, once.
func (r *run) appendReply() {
	if r.appended {
		return
	}
	r.history = append(r.history, protocol.TextMessage(protocol.RoleAssistant, r.reply))
	r.appended = true
}

// fail moves the run to Failed and writes the terminal record.
func (r *run) fail(ctx context.Context, stage Stage, cause error) error {
	se := &StageError{Stage: stage, Class: Classify(cause), Err: cause}
	if r.state == StateFailed {
		return se
	}
	r.state = StateFailed

	slog.Warn("pipeline.failed", "run_id", r.req.RunID, "stage", stage, "class", se.Class, "error", cause)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("pipeline.terminal_record_panic", "run_id", r.req.RunID, "panic", rec)
			}
		}()
		if err := r.sink.Write(ctx, protocol.NewErrorRecord(r.history, scrubCredentials(cause.Error()))); err != nil {
			slog.Debug("pipeline terminal record not delivered", "run_id", r.req.RunID, "error", err)
		}
	}()
	return se
}

func (r *run) close() {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.sink.Close(); err != nil {
		slog.Debug("pipeline sink close", "run_id", r.req.RunID, "error", err)
	}
	if r.state != StateFailed {
		r.state = StateClosed
	}
}
