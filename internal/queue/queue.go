// Package queue provides the Redis-backed job queue (Asynq) that carries
// hot-folder and API batch jobs to the watermark worker.
package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Adilonapsh/exif-watermark-app/internal/datetime"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// TypeWatermarkBatch is the task type for watermarking a group of inbox files.
const TypeWatermarkBatch = "watermark:batch"

// DefaultQueue is the only queue the service uses.
const DefaultQueue = "default"

// BatchPayload is the payload for TypeWatermarkBatch tasks.
type BatchPayload struct {
	// Files are paths relative to the inbox directory, processed in order
	Files []string `json:"files"`

	// Optional overrides applied to every file
	Location    string            `json:"location,omitempty"`
	Lat         *float64          `json:"lat,omitempty"`
	Lng         *float64          `json:"lng,omitempty"`
	DateTime    string            `json:"datetime,omitempty"`
	DateOptions *datetime.Options `json:"date_options,omitempty"`

	// Origin is "watcher" or "api"
	Origin string `json:"origin"`

	// SubmittedAt is when the batch was enqueued
	SubmittedAt time.Time `json:"submitted_at"`
}

// ErrInvalidPayload is returned for batches that cannot be enqueued.
var ErrInvalidPayload = errors.New("invalid batch payload")

// Validate checks that the payload names files and pairs its coordinates.
func (p BatchPayload) Validate() error {
	if len(p.Files) == 0 {
		return fmt.Errorf("%w: batch has no files", ErrInvalidPayload)
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		return fmt.Errorf("%w: lat and lng must be given together", ErrInvalidPayload)
	}
	return nil
}

// NewBatchTask builds an Asynq task for payload. Batches are never retried.
func NewBatchTask(payload BatchPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if payload.SubmittedAt.IsZero() {
		payload.SubmittedAt = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	defaultOpts := []asynq.Option{
		asynq.MaxRetry(0),
		asynq.Queue(DefaultQueue),
	}
	return asynq.NewTask(TypeWatermarkBatch, data, append(defaultOpts, opts...)...), nil
}

// FileBatchID returns a task ID for a batch of files under root. It changes
// when the file list or any file's size or mtime changes, so a batch that is
// still queued is not enqueued twice.
func FileBatchID(root string, files []string) string {
	h := sha256.New()
	for _, rel := range files {
		h.Write([]byte(rel))
		h.Write([]byte{0})
		if info, err := os.Stat(filepath.Join(root, rel)); err == nil {
			h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
			h.Write([]byte{0})
			h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
		}
		h.Write([]byte{'\n'})
	}
	return "batch-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// IsDuplicate reports whether err means the same batch is already queued.
func IsDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict)
}

// ParseBatchPayload decodes the payload of a TypeWatermarkBatch task.
func ParseBatchPayload(task *asynq.Task) (BatchPayload, error) {
	var payload BatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BatchPayload{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// Client wraps asynq.Client.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// NewClient creates a new queue client.
func NewClient(redisURL string, log *logger.Logger) (*Client, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Client{
		client: asynq.NewClient(redisOpt),
		logger: log.WithField("component", "queue-client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueBatch adds a batch task to the queue. When opts carry a task ID or
// uniqueness lock that is already taken, it returns nil info and no error.
func (c *Client) EnqueueBatch(ctx context.Context, payload BatchPayload, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	task, err := NewBatchTask(payload, opts...)
	if err != nil {
		return nil, err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if IsDuplicate(err) {
			c.logger.WithField("files", len(payload.Files)).Debug("batch already queued, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"task_id": info.ID,
		"files":   len(payload.Files),
		"origin":  payload.Origin,
		"queue":   info.Queue,
	}).Debug("batch enqueued")

	return info, nil
}

// Inspector wraps asynq.Inspector for queue inspection.
type Inspector struct {
	inspector *asynq.Inspector
}

// NewInspector creates a new queue inspector.
func NewInspector(redisURL string) (*Inspector, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Inspector{inspector: asynq.NewInspector(redisOpt)}, nil
}

// Close closes the inspector connection.
func (i *Inspector) Close() error {
	return i.inspector.Close()
}

// Stats holds queue statistics.
type Stats struct {
	Pending        int `json:"pending"`
	Active         int `json:"active"`
	Archived       int `json:"archived"`
	ProcessedTotal int `json:"processed_total"`
	FailedTotal    int `json:"failed_total"`
}

// Stats returns statistics for the default queue.
func (i *Inspector) Stats() (*Stats, error) {
	info, err := i.inspector.GetQueueInfo(DefaultQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue info: %w", err)
	}
	return &Stats{
		Pending:        info.Pending,
		Active:         info.Active,
		Archived:       info.Archived,
		ProcessedTotal: int(info.ProcessedTotal),
		FailedTotal:    int(info.FailedTotal),
	}, nil
}

// Server wraps asynq.Server for task processing.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// ServerConfig holds server configuration options.
type ServerConfig struct {
	// RedisURL is the Redis connection string
	RedisURL string

	// ShutdownTimeout is how long to wait for the active batch on shutdown
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns configuration with sensible defaults.
func DefaultServerConfig(redisURL string) ServerConfig {
	return ServerConfig{
		RedisURL:        redisURL,
		ShutdownTimeout: 5 * time.Minute,
	}
}

// NewServer creates a new queue server. It pulls one task at a time because
// every batch ends up on the single pipeline worker anyway.
func NewServer(cfg ServerConfig, log *logger.Logger) (*Server, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     1,
		Queues:          map[string]int{DefaultQueue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          &asynqLogger{log: log.WithField("component", "asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.WithFields(map[string]interface{}{
				"task_type": task.Type(),
				"error":     err.Error(),
			}).Error("task processing failed")
		}),
	})

	return &Server{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log.WithField("component", "queue-server"),
	}, nil
}

// HandleFunc registers a handler function for a task type.
func (s *Server) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	s.mux.HandleFunc(taskType, handler)
}

// Start starts the server and begins processing tasks.
func (s *Server) Start() error {
	s.logger.Info("starting queue server")
	return s.server.Start(s.mux)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down queue server")
	s.server.Shutdown()
}

// asynqLogger adapts our logger to asynq's logger interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal(fmt.Sprint(args...))
}
