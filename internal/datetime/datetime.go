// Package datetime applies a manually supplied capture time to a record.
package datetime

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Adilonapsh/exif-watermark-app/internal/exifdata"
	"github.com/Adilonapsh/exif-watermark-app/internal/locale"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Options controls which time components appear in the override display.
type Options struct {
	ShowHours        bool `json:"show_hours"`
	ShowMinutes      bool `json:"show_minutes"`
	ShowSeconds      bool `json:"show_seconds"`
	RandomizeSeconds bool `json:"randomize_seconds"`
}

// DefaultOptions shows hours, minutes and the real seconds.
func DefaultOptions() Options {
	return Options{ShowHours: true, ShowMinutes: true, ShowSeconds: true}
}

// UnmarshalJSON decodes over DefaultOptions, so omitted fields keep their
// defaults instead of turning false.
func (o *Options) UnmarshalJSON(data []byte) error {
	type plain Options
	p := plain(DefaultOptions())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Options(p)
	return nil
}

// Accepted override layouts, tried in order. Zone-less layouts are read in the
// formatter's location.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Formatter renders override timestamps.
type Formatter struct {
	locale   locale.Locale
	location *time.Location
	seconds  func() int
	logger   *logger.Logger
}

// Config holds formatter settings.
type Config struct {
	Locale   locale.Locale
	Location *time.Location

	// RandomSecond returns a value in [0,60). Defaults to math/rand.
	RandomSecond func() int
}

// NewFormatter creates a new date/time formatter.
func NewFormatter(cfg Config, log *logger.Logger) *Formatter {
	f := &Formatter{
		locale:   cfg.Locale,
		location: cfg.Location,
		seconds:  cfg.RandomSecond,
		logger:   log.WithField("component", "datetime"),
	}
	if f.locale.Tag == "" {
		f.locale = locale.Indonesian
	}
	if f.location == nil {
		f.location = time.Local
	}
	if f.seconds == nil {
		f.seconds = func() int { return rand.Intn(60) }
	}
	return f
}

// ApplyOverride replaces the record's capture display with iso rendered under
// opts. A blank or unparseable iso leaves the record unchanged.
func (f *Formatter) ApplyOverride(rec exifdata.Record, iso string, opts Options) exifdata.Record {
	iso = strings.TrimSpace(iso)
	if iso == "" {
		return rec
	}

	t, ok := f.parse(iso)
	if !ok {
		f.logger.WithField("value", iso).Debug("ignoring unparseable date override")
		return rec
	}

	rec.CaptureDisplay = f.Format(t, opts)
	return rec
}

// Format renders "{date}, {time}" or just "{date}" when no time component is shown.
func (f *Formatter) Format(t time.Time, opts Options) string {
	var parts []string
	if opts.ShowHours {
		parts = append(parts, twoDigits(t.Hour()))
	}
	if opts.ShowMinutes {
		parts = append(parts, twoDigits(t.Minute()))
	}
	if opts.ShowSeconds {
		sec := t.Second()
		if opts.RandomizeSeconds {
			sec = f.seconds()
		}
		parts = append(parts, twoDigits(sec))
	}

	date := f.locale.Date(t)
	if len(parts) == 0 {
		return date
	}
	return date + ", " + strings.Join(parts, ":")
}

func (f *Formatter) parse(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, f.location); err == nil {
			return t.In(f.location), true
		}
	}
	return time.Time{}, false
}

func twoDigits(n int) string {
	return fmt.Sprintf("%02d", n)
}
