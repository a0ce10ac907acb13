package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ismparse/internal"
	"ismparse/internal/config"
)

const maxPromptText = 12000

// Corrector proposes a corrected draft. Any error means the draft is kept.
type Corrector interface {
	Correct(ctx context.Context, prompt string, draft internal.Draft) (internal.Draft, error)
}

// Sink receives finished reports. storage.DB satisfies it.
type Sink interface {
	SaveReport(ctx context.Context, runID, docRef string, rec internal.FlatRecord) error
	InsertRun(ctx context.Context, runID, docRef string, timings map[string]float64, counts map[string]int) error
}

type ProcessingService struct {
	provider   config.Provider
	classifier *Classifier
	registry   *Registry
	pipeline   *Pipeline

	corrector        Corrector
	correctorTimeout time.Duration
	sink             Sink
}

type Option func(*ProcessingService)

func WithCorrector(c Corrector, timeout time.Duration) Option {
	return func(s *ProcessingService) {
		s.corrector = c
		s.correctorTimeout = timeout
	}
}

func WithSink(sink Sink) Option {
	return func(s *ProcessingService) { s.sink = sink }
}

func WithRegistry(r *Registry) Option {
	return func(s *ProcessingService) { s.registry = r }
}

func WithStandardizer(st *Standardizer) Option {
	return func(s *ProcessingService) { s.pipeline = NewPipeline(s.provider, st) }
}

func NewProcessingService(provider config.Provider, margin float64, opts ...Option) *ProcessingService {
	s := &ProcessingService{
		provider:         provider,
		classifier:       NewClassifier(provider, margin),
		registry:         NewDefaultRegistry(provider),
		pipeline:         NewPipeline(provider, nil),
		correctorTimeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProcessingService) Classifier() *Classifier { return s.classifier }

// Process never returns nil and never panics. Empty input yields the
// minimal Manufacturing report.
func (s *ProcessingService) Process(ctx context.Context, text, docRef string) (report *internal.Report) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("doc", docRef).Interface("panic", rec).Msg("process.recovered")
			if report == nil {
				report = internal.NewReport(internal.Manufacturing)
			}
			report.Warn(fmt.Sprintf("processing aborted: %v", rec))
		}
	}()

	if strings.TrimSpace(text) == "" {
		log.Warn().Str("doc", docRef).Msg("process.empty_text")
		report = internal.NewReport(internal.Manufacturing)
		report.Warn("empty input text")
		return report
	}

	cls := s.classifier.Score(text)
	log.Debug().Str("doc", docRef).Str("type", string(cls.ReportType)).
		Float64("manufacturing", cls.Manufacturing).Float64("services", cls.Services).
		Bool("ambiguous", cls.Ambiguous).Msg("process.classified")

	draft := s.Extract(text, docRef, cls)
	rt := cls.ReportType
	if parsed, ok := internal.ParseReportType(draft.ReportType); ok {
		rt = parsed
	}

	draft = s.correct(ctx, text, draft, rt)
	report = s.pipeline.Run(draft, rt)
	return report
}

// Extract runs the registered strategies in priority order and merges their
// fragments. A strategy that settles the report type steers the ones after it.
func (s *ProcessingService) Extract(text, docRef string, cls Classification) internal.Draft {
	in := Input{Text: text, DocRef: docRef, ReportType: cls.ReportType, Ambiguous: cls.Ambiguous}
	frags := []Fragment{}
	for _, strategy := range s.registry.StrategiesFor(cls.ReportType) {
		frag := runStrategy(strategy, in)
		if frag.ReportType != "" && frag.ReportType != in.ReportType {
			in.ReportType = frag.ReportType
			in.Ambiguous = false
		}
		frags = append(frags, frag)
	}
	return MergeFragments(cls.ReportType, frags)
}

func (s *ProcessingService) correct(ctx context.Context, text string, draft internal.Draft, rt internal.ReportType) internal.Draft {
	if s.corrector == nil {
		return draft
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.correctorTimeout)
	defer cancel()

	prompt := s.provider.CorrectionPrompt(rt)
	if len(draft.Indices) == 0 {
		prompt = s.provider.ExtractionPrompt(rt)
	}
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	prompt = prompt + "\n\nReport text:\n" + text

	start := time.Now()
	candidate, err := s.corrector.Correct(ctx, prompt, draft)
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("process.corrector_failed")
		return draft
	}
	if len(candidate.Indices) == 0 && len(draft.Indices) > 0 {
		log.Warn().Msg("process.corrector_dropped_indices")
		return draft
	}
	log.Info().Int("indices", len(candidate.Indices)).Dur("elapsed", time.Since(start)).Msg("process.corrected")
	return candidate
}

type ProcessResult struct {
	RunID  string
	Report *internal.Report
}

// ProcessDocument processes one document and hands the flat record to the
// sink, recording timings and counts for the run.
func (s *ProcessingService) ProcessDocument(ctx context.Context, text, docRef string) (ProcessResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	report := s.Process(ctx, text, docRef)
	result := ProcessResult{RunID: runID, Report: report}
	if s.sink == nil {
		return result, nil
	}

	flat := report.Flatten()
	if err := s.sink.SaveReport(ctx, runID, docRef, flat); err != nil {
		return result, fmt.Errorf("save report: %w", err)
	}
	timings := map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
	counts := map[string]int{
		"indices":    len(flat.Indices),
		"industries": len(flat.Industries),
		"warnings":   len(report.Warnings),
	}
	if err := s.sink.InsertRun(ctx, runID, docRef, timings, counts); err != nil {
		return result, fmt.Errorf("record run: %w", err)
	}
	return result, nil
}
