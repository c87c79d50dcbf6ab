// Package pipeline runs photos through extraction, location and timestamp
// overrides, layout and rendering, one image at a time.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/internal/datetime"
	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/location"
	"github.com/Adilonapsh/exif-watermark-app/internal/render"
	"github.com/Adilonapsh/exif-watermark-app/internal/watermark"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Options are the per-batch overrides.
type Options struct {
	ManualLocation    string
	ManualCoordinates exifdata.Coordinates
	ManualTimestamp   string
	DateOptions       datetime.Options
}

// DefaultOptions returns options with no overrides.
func DefaultOptions() Options {
	return Options{DateOptions: datetime.DefaultOptions()}
}

// Result is one successfully watermarked image.
type Result struct {
	Source   string
	Image    []byte
	Record   exifdata.Record
	Width    int
	Height   int
	Blurhash string
}

// Step is a progress step of one image.
type Step string

const (
	StepReading      Step = "reading"
	StepExtracting   Step = "extracting"
	StepLocating     Step = "locating"
	StepWatermarking Step = "watermarking"
	StepDone         Step = "done"
	StepFailed       Step = "failed"
)

// Progress reports where a batch is.
type Progress struct {
	Index  int
	Total  int
	Source string
	Step   Step
	Err    error
}

// ProgressFunc receives progress events on the worker goroutine.
type ProgressFunc func(Progress)

// Renderer decodes base images and composites watermarks.
type Renderer interface {
	Decode(data []byte) (image.Image, error)
	Render(ctx context.Context, base image.Image, lines []watermark.Line, plan watermark.Plan, coords exifdata.Coordinates) (*render.Output, error)
}

// Recorder receives per-image outcomes. *metrics.Metrics implements it.
type Recorder interface {
	IncImagesProcessed(status string)
	IncImagesFailed(stage string)
	ObserveProcessingDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) IncImagesProcessed(string)               {}
func (nopRecorder) IncImagesFailed(string)                  {}
func (nopRecorder) ObserveProcessingDuration(time.Duration) {}

// StageError is a failed image tagged with the stage that failed.
type StageError struct {
	Source string
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Config holds pipeline dependencies.
type Config struct {
	Extractor *exifdata.Extractor
	Resolver  *location.Resolver
	Formatter *datetime.Formatter
	Engine    *watermark.Engine
	Renderer  Renderer
	Metrics   Recorder
}

// Pipeline watermarks images. It is driven by a single Queue worker and is
// not safe for concurrent use.
type Pipeline struct {
	extractor *exifdata.Extractor
	resolver  *location.Resolver
	formatter *datetime.Formatter
	engine    *watermark.Engine
	renderer  Renderer
	metrics   Recorder
	logger    *logger.Logger
}

// New creates a new pipeline.
func New(cfg Config, log *logger.Logger) *Pipeline {
	p := &Pipeline{
		extractor: cfg.Extractor,
		resolver:  cfg.Resolver,
		formatter: cfg.Formatter,
		engine:    cfg.Engine,
		renderer:  cfg.Renderer,
		metrics:   cfg.Metrics,
		logger:    log.WithField("component", "pipeline"),
	}
	if p.extractor == nil {
		p.extractor = exifdata.NewExtractor(exifdata.ExtractorConfig{Decoder: exifdata.GoexifDecoder{}}, log)
	}
	if p.resolver == nil {
		p.resolver = location.NewResolver(location.Config{}, log)
	}
	if p.formatter == nil {
		p.formatter = datetime.NewFormatter(datetime.Config{}, log)
	}
	if p.engine == nil {
		p.engine = watermark.NewEngine(watermark.DefaultConfig())
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	return p
}

// Batch processes sources in order. Failed items are logged, counted and
// left out; the batch always runs to the end.
func (p *Pipeline) Batch(ctx context.Context, sources []Source, opts Options, progress ProgressFunc) []Result {
	if progress == nil {
		progress = func(Progress) {}
	}

	results := make([]Result, 0, len(sources))
	for i, src := range sources {
		report := func(step Step, err error) {
			progress(Progress{Index: i, Total: len(sources), Source: src.Name(), Step: step, Err: err})
		}

		start := time.Now()
		res, err := p.safeProcess(ctx, src, opts, report)
		if err != nil {
			stage := "unknown"
			if se, ok := err.(*StageError); ok {
				stage = se.Stage
			}
			p.metrics.IncImagesFailed(stage)
			p.metrics.IncImagesProcessed("failed")
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.Name(),
				"stage":  stage,
			}).Error("failed to process image")
			report(StepFailed, err)
			continue
		}

		p.metrics.IncImagesProcessed("success")
		p.metrics.ObserveProcessingDuration(time.Since(start))
		report(StepDone, nil)
		results = append(results, *res)
	}

	p.logger.WithFields(map[string]interface{}{
		"total":     len(sources),
		"processed": len(results),
		"failed":    len(sources) - len(results),
	}).Info("batch completed")

	return results
}

// safeProcess turns a panic in one image into a failure of that image only.
func (p *Pipeline) safeProcess(ctx context.Context, src Source, opts Options, report func(Step, error)) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &StageError{Source: src.Name(), Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	return p.Process(ctx, src, opts, report)
}

// Process watermarks a single image.
func (p *Pipeline) Process(ctx context.Context, src Source, opts Options, report func(Step, error)) (*Result, error) {
	if report == nil {
		report = func(Step, error) {}
	}
	name := src.Name()
	fail := func(stage string, err error) error {
		return &StageError{Source: name, Stage: stage, Err: err}
	}

	report(StepReading, nil)
	data, modTime, err := src.Open()
	if err != nil {
		return nil, fail("read", err)
	}

	report(StepExtracting, nil)
	rec := p.extractor.ExtractImage(data, modTime)

	report(StepLocating, nil)
	rec = p.resolver.Resolve(ctx, rec, opts.ManualLocation, opts.ManualCoordinates)
	rec = p.formatter.ApplyOverride(rec, opts.ManualTimestamp, opts.DateOptions)

	report(StepWatermarking, nil)
	if p.renderer == nil {
		return nil, fail("render", fmt.Errorf("no renderer configured"))
	}
	base, err := p.renderer.Decode(data)
	if err != nil {
		return nil, fail(stageOf(err, "decode"), err)
	}

	b := base.Bounds()
	lines, plan := p.engine.Layout(rec, b.Dx(), b.Dy())

	out, err := p.renderer.Render(ctx, base, lines, plan, rec.Coordinates)
	if err != nil {
		return nil, fail(stageOf(err, "render"), err)
	}

	p.logger.WithFields(map[string]interface{}{
		"source": name,
		"width":  out.Width,
		"height": out.Height,
		"lines":  len(lines),
	}).Debug("image watermarked")

	return &Result{
		Source:   name,
		Image:    out.JPEG,
		Record:   rec,
		Width:    out.Width,
		Height:   out.Height,
		Blurhash: out.Blurhash,
	}, nil
}

func stageOf(err error, fallback string) string {
	if s := render.StageOf(err); s != "" {
		return s
	}
	return fallback
}
