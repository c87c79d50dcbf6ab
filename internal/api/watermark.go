package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Adilonapsh/exif-watermark-app/internal/datetime"
	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/pipeline"
	"github.com/Adilonapsh/exif-watermark-app/internal/queue"
	"github.com/Adilonapsh/exif-watermark-app/pkg/fileutil"
)

// multipartMemory is how much of an upload is held in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// WatermarkResult is one watermarked upload.
type WatermarkResult struct {
	Source   string          `json:"source"`
	Filename string          `json:"filename"`
	Image    string          `json:"image"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Blurhash string          `json:"blurhash,omitempty"`
	Exif     exifdata.Record `json:"exif"`
}

// WatermarkResponse represents the /api/v1/watermark response.
type WatermarkResponse struct {
	Results   []WatermarkResult `json:"results"`
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
}

// handleWatermark handles POST /api/v1/watermark
func (s *Server) handleWatermark(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := optionsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	sources := make([]pipeline.Source, 0, len(files))
	for _, fh := range files {
		src, err := readUpload(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sources = append(sources, src)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"request_id": middleware.GetReqID(r.Context()),
		"files":      len(sources),
	})
	log.Info("upload batch received")

	results, err := s.batcher.ProcessBatch(r.Context(), sources, opts, pipeline.WithOrigin("api"))
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueStopped) {
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
			return
		}
		log.WithError(err).Warn("upload batch abandoned")
		writeError(w, http.StatusGatewayTimeout, "batch did not finish in time")
		return
	}

	response := WatermarkResponse{
		Results:   make([]WatermarkResult, len(results)),
		Processed: len(results),
		Failed:    len(sources) - len(results),
	}
	for i, res := range results {
		response.Results[i] = WatermarkResult{
			Source:   res.Source,
			Filename: fileutil.OutputName(res.Source),
			Image:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(res.Image),
			Width:    res.Width,
			Height:   res.Height,
			Blurhash: res.Blurhash,
			Exif:     res.Record,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// readUpload reads one uploaded file into memory.
func readUpload(fh *multipart.FileHeader) (pipeline.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return pipeline.MemorySource{Filename: fh.Filename, Data: data, ModTime: time.Now()}, nil
}

// optionsFromForm reads the batch overrides from an upload form.
func optionsFromForm(r *http.Request) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.ManualLocation = strings.TrimSpace(r.FormValue("location"))
	opts.ManualTimestamp = strings.TrimSpace(r.FormValue("datetime"))

	lat, lng := strings.TrimSpace(r.FormValue("lat")), strings.TrimSpace(r.FormValue("lng"))
	switch {
	case lat == "" && lng == "":
	case lat == "" || lng == "":
		return opts, errors.New("lat and lng must be given together")
	default:
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid lat %q", lat)
		}
		ln, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid lng %q", lng)
		}
		opts.ManualCoordinates = exifdata.At(la, ln)
	}

	d := datetime.DefaultOptions()
	opts.DateOptions = datetime.Options{
		ShowHours:        formBool(r, "show_hours", d.ShowHours),
		ShowMinutes:      formBool(r, "show_minutes", d.ShowMinutes),
		ShowSeconds:      formBool(r, "show_seconds", d.ShowSeconds),
		RandomizeSeconds: formBool(r, "randomize_seconds", d.RandomizeSeconds),
	}
	return opts, nil
}

// formBool reads a checkbox-style field. Absent fields keep def.
func formBool(r *http.Request, key string, def bool) bool {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// JobRequest represents the /api/v1/jobs request body.
type JobRequest struct {
	Files       []string          `json:"files"`
	Location    string            `json:"location"`
	Lat         *float64          `json:"lat"`
	Lng         *float64          `json:"lng"`
	DateTime    string            `json:"datetime"`
	DateOptions *datetime.Options `json:"date_options"`
}

// JobResponse represents the /api/v1/jobs response.
type JobResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Files  int    `json:"files"`
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue is disabled")
		return
	}

	var req JobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload := queue.BatchPayload{
		Files:       req.Files,
		Location:    req.Location,
		Lat:         req.Lat,
		Lng:         req.Lng,
		DateTime:    req.DateTime,
		DateOptions: req.DateOptions,
		Origin:      "api",
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.enqueuer.EnqueueBatch(r.Context(), payload)
	if err != nil {
		s.logger.WithError(err).Error("failed to enqueue job")
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	response := JobResponse{Status: "queued", Files: len(req.Files)}
	if info != nil {
		response.TaskID = info.ID
	}

	writeJSON(w, http.StatusAccepted, response)
}
