// Package main is the entry point for the stamp service.
// The service burns a photo's EXIF data (capture time, camera settings,
// address, coordinates and a map thumbnail) onto a copy of the photo:
// - Uploads over HTTP, answered with the watermarked images
// - Hot-folder jobs through the Redis-backed queue
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Adilonapsh/exif-watermark-app/internal/api"
	"github.com/Adilonapsh/exif-watermark-app/internal/config"
	"github.com/Adilonapsh/exif-watermark-app/internal/datetime"
	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/geo"
	"github.com/Adilonapsh/exif-watermark-app/internal/locale"
	"github.com/Adilonapsh/exif-watermark-app/internal/location"
	"github.com/Adilonapsh/exif-watermark-app/internal/maptile"
	"github.com/Adilonapsh/exif-watermark-app/internal/metrics"
	"github.com/Adilonapsh/exif-watermark-app/internal/pipeline"
	"github.com/Adilonapsh/exif-watermark-app/internal/queue"
	"github.com/Adilonapsh/exif-watermark-app/internal/render"
	"github.com/Adilonapsh/exif-watermark-app/internal/vips"
	"github.com/Adilonapsh/exif-watermark-app/internal/watcher"
	"github.com/Adilonapsh/exif-watermark-app/internal/watermark"
	"github.com/Adilonapsh/exif-watermark-app/internal/worker"
	"github.com/Adilonapsh/exif-watermark-app/pkg/fileutil"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	// Ensure required directories exist
	if err := cfg.EnsureDirs(); err != nil {
		panic(fmt.Sprintf("failed to create directories: %v", err))
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "stamp",
	})

	log.Info("starting stamp service")

	tz, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	loc := locale.Lookup(cfg.DisplayLocale)

	// Initialize metrics
	m := metrics.New()

	// Signal-aware root context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Geocoding
	resolverCfg := location.Config{OnGeocode: m.IncGeocodingRequests}
	switch cfg.Geocoder {
	case config.GeocoderOpenCage:
		resolverCfg.Geocoder = geo.NewOpenCage(geo.OpenCageConfig{
			BaseURL:  cfg.OpenCageURL,
			Key:      cfg.OpenCageKey,
			Language: cfg.GeocodeLanguage,
			Timeout:  cfg.HTTPTimeout,
		}, log)
	case config.GeocoderNominatim:
		nominatimCfg := geo.DefaultNominatimConfig()
		nominatimCfg.BaseURL = cfg.NominatimURL
		nominatimCfg.Language = cfg.GeocodeLanguage
		nominatimCfg.Timeout = cfg.HTTPTimeout
		n := geo.NewNominatim(nominatimCfg, log)
		resolverCfg.Geocoder = n
		resolverCfg.Reverse = n
	}
	resolver := location.NewResolver(resolverCfg, log)

	// Rendering
	renderCfg := render.DefaultConfig()
	renderCfg.Quality = cfg.JPEGQuality
	renderCfg.MaxPixels = cfg.MaxPixels
	renderCfg.MapEnabled = cfg.MapEnabled
	renderCfg.MapBestEffort = cfg.MapBestEffort
	renderCfg.OnMapFetch = m.IncMapRequests
	renderCfg.Maps = maptile.NewFetcher(maptile.Config{
		BaseURL: cfg.MapboxURL,
		Style:   cfg.MapboxStyle,
		Token:   cfg.MapboxToken,
		Timeout: cfg.HTTPTimeout,
	}, log)

	if cfg.VipsEnabled {
		vips.Initialize()
		defer vips.Shutdown()
		renderCfg.Fallback = vips.NewDecoder(log)
	}

	renderer, err := render.NewRenderer(renderCfg, log)
	if err != nil {
		log.Fatalf("failed to create renderer: %v", err)
	}
	defer renderer.Close()

	engine := watermark.NewEngine(watermark.Config{
		Measurer:        renderer,
		FallbackAddress: cfg.FallbackAddress,
	})

	// Pipeline and its single worker
	p := pipeline.New(pipeline.Config{
		Extractor: exifdata.NewExtractor(exifdata.ExtractorConfig{
			Decoder: exifdata.GoexifDecoder{},
			Locale:  loc,
		}, log),
		Resolver: resolver,
		Formatter: datetime.NewFormatter(datetime.Config{
			Locale:   loc,
			Location: tz,
		}, log),
		Engine:   engine,
		Renderer: renderer,
		Metrics:  m,
	}, log)

	pipelineCtx, cancelPipeline := context.WithCancel(context.Background())
	defer cancelPipeline()

	batches := pipeline.NewQueue(p, pipeline.QueueConfig{Metrics: m}, log)
	batches.Start(pipelineCtx)

	apiCfg := api.Config{
		Port:           cfg.APIPort,
		Batcher:        batches,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         log,
	}

	// Hot folder: job queue, worker and watcher
	var queueServer *queue.Server
	if cfg.QueueEnabled {
		client, err := queue.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Fatalf("failed to create queue client: %v", err)
		}
		defer client.Close()

		inspector, err := queue.NewInspector(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to create queue inspector: %v", err)
		}
		defer inspector.Close()

		queueServer, err = queue.NewServer(queue.DefaultServerConfig(cfg.RedisURL), log)
		if err != nil {
			log.Fatalf("failed to create queue server: %v", err)
		}

		w := worker.NewWorker(worker.Deps{
			Batcher:   batches,
			InboxDir:  cfg.InboxDir,
			OutputDir: cfg.OutputDir,
			Logger:    log,
		})
		queueServer.HandleFunc(queue.TypeWatermarkBatch, w.HandleBatch)

		go func() {
			if err := queueServer.Start(); err != nil {
				log.Fatalf("queue server failed: %v", err)
			}
		}()

		apiCfg.Enqueuer = client
		apiCfg.Inspector = inspector

		if cfg.WatchEnabled {
			fw, err := watcher.New(watcher.Config{
				Dir:    cfg.InboxDir,
				Settle: cfg.WatchSettle,
				Handler: func(ctx context.Context, files []string) error {
					_, err := client.EnqueueBatch(ctx, queue.BatchPayload{
						Files:  files,
						Origin: "watcher",
					}, asynq.TaskID(queue.FileBatchID(cfg.InboxDir, files)))
					return err
				},
				// Startup scan skips photos that already have an output
				Skip: func(rel string) bool {
					return fileutil.FileExists(worker.OutputPath(cfg.OutputDir, rel))
				},
				Logger: log,
			})
			if err != nil {
				log.Fatalf("failed to create watcher: %v", err)
			}
			go fw.Start(ctx)
			apiCfg.Watcher = fw
		}
	}

	// Create API server
	apiServer := api.New(apiCfg)

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()
	m.SetRunning()

	log.WithFields(map[string]interface{}{
		"api_port":    cfg.APIPort,
		"geocoder":    cfg.Geocoder,
		"map_enabled": cfg.MapEnabled,
		"queue":       cfg.QueueEnabled,
		"watch":       cfg.WatchEnabled,
		"locale":      loc.Tag,
	}).Info("stamp service started")

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("received shutdown signal")

	// Graceful shutdown
	m.SetStopped()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop API server
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown error")
	}

	// Stop queue server (waits for the active batch)
	if queueServer != nil {
		queueServer.Shutdown()
	}

	// Let the pipeline finish the batch in progress
	cancelPipeline()
	select {
	case <-batches.Done():
	case <-shutdownCtx.Done():
		log.Warn("pipeline did not stop in time")
	}

	log.Info("stamp service stopped")
}
