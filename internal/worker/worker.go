// Package worker handles watermark batch tasks from the job queue: it reads
// inbox files, runs them through the pipeline and writes the outputs.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Adilonapsh/exif-watermark-app/internal/datetime"
	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/pipeline"
	"github.com/Adilonapsh/exif-watermark-app/internal/queue"
	"github.com/Adilonapsh/exif-watermark-app/pkg/fileutil"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Batcher runs batches through the pipeline.
type Batcher interface {
	ProcessBatch(ctx context.Context, sources []pipeline.Source, opts pipeline.Options, options ...pipeline.BatchOption) ([]pipeline.Result, error)
}

// Worker processes batch tasks.
type Worker struct {
	batcher   Batcher
	inboxDir  string
	outputDir string
	logger    *logger.Logger
}

// Deps holds dependencies for creating a worker.
type Deps struct {
	Batcher   Batcher
	InboxDir  string
	OutputDir string
	Logger    *logger.Logger
}

// NewWorker creates a new batch worker.
func NewWorker(deps Deps) *Worker {
	return &Worker{
		batcher:   deps.Batcher,
		inboxDir:  deps.InboxDir,
		outputDir: deps.OutputDir,
		logger:    deps.Logger.WithField("component", "worker"),
	}
}

// Summary describes a finished batch.
type Summary struct {
	Requested int
	Skipped   int
	Processed int
	Failed    int
	Outputs   []string
}

// HandleBatch handles the watermark:batch task.
func (w *Worker) HandleBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseBatchPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	summary, err := w.Run(ctx, payload)
	if err != nil {
		return err
	}
	if summary.Processed == 0 && summary.Requested > 0 {
		return fmt.Errorf("no file of %d could be watermarked", summary.Requested)
	}
	return nil
}

// Run processes payload and writes one output per successful file. Missing
// or unsafe paths are skipped.
func (w *Worker) Run(ctx context.Context, payload queue.BatchPayload) (*Summary, error) {
	log := w.logger.WithFields(map[string]interface{}{
		"files":  len(payload.Files),
		"origin": payload.Origin,
	})
	log.Info("processing batch")
	startTime := time.Now()

	summary := &Summary{Requested: len(payload.Files)}

	sources := make([]pipeline.Source, 0, len(payload.Files))
	for _, rel := range payload.Files {
		path, err := fileutil.ResolveInside(w.inboxDir, rel)
		if err != nil {
			log.WithError(err).WithField("file", rel).Warn("rejecting path")
			summary.Skipped++
			continue
		}
		if !fileutil.FileExists(path) {
			log.WithField("file", rel).Warn("file not found, skipping")
			summary.Skipped++
			continue
		}
		sources = append(sources, pipeline.FileSource{Path: path, Label: filepath.Clean(rel)})
	}

	if len(sources) == 0 {
		log.Warn("nothing to process")
		return summary, nil
	}

	results, err := w.batcher.ProcessBatch(ctx, sources, OptionsFromPayload(payload), pipeline.WithOrigin("queue"))
	if err != nil {
		return nil, fmt.Errorf("failed to process batch: %w", err)
	}

	for _, res := range results {
		out := OutputPath(w.outputDir, res.Source)
		if err := fileutil.WriteFileAtomic(out, res.Image); err != nil {
			log.WithError(err).WithField("file", res.Source).Error("failed to write output")
			summary.Failed++
			continue
		}
		summary.Processed++
		summary.Outputs = append(summary.Outputs, out)
	}
	summary.Failed += len(sources) - len(results)

	log.WithFields(map[string]interface{}{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"duration":  time.Since(startTime).String(),
	}).Info("batch completed")

	return summary, nil
}

// OutputPath mirrors the inbox subdirectory of source under outputDir.
func OutputPath(outputDir, source string) string {
	return filepath.Join(outputDir, filepath.Dir(source), fileutil.OutputName(source))
}

// OptionsFromPayload converts payload overrides to pipeline options.
func OptionsFromPayload(p queue.BatchPayload) pipeline.Options {
	opts := pipeline.Options{
		ManualLocation:  p.Location,
		ManualTimestamp: p.DateTime,
		DateOptions:     datetime.DefaultOptions(),
	}
	if p.Lat != nil && p.Lng != nil {
		opts.ManualCoordinates = exifdata.At(*p.Lat, *p.Lng)
	}
	if p.DateOptions != nil {
		opts.DateOptions = *p.DateOptions
	}
	return opts
}
