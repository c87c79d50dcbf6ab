// Package locale renders dates the way the watermark shows them:
// two-digit day, abbreviated month name, four-digit year.
package locale

import (
	"fmt"
	"strings"
	"time"
)

// Locale holds the abbreviated month names for one display language.
type Locale struct {
	Tag    string
	Months [12]string
}

// Indonesian is the default display locale.
var Indonesian = Locale{
	Tag:    "id",
	Months: [12]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"},
}

// English month abbreviations.
var English = Locale{
	Tag:    "en",
	Months: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

var locales = map[string]Locale{
	"id": Indonesian,
	"en": English,
}

// Lookup returns the locale for a tag like "id", "id-ID" or "en_US".
// Unknown tags fall back to Indonesian.
func Lookup(tag string) Locale {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if l, ok := locales[tag]; ok {
		return l
	}
	return Indonesian
}

// Date formats t as "01 Mei 2024".
func (l Locale) Date(t time.Time) string {
	return fmt.Sprintf("%02d %s %d", t.Day(), l.Months[t.Month()-1], t.Year())
}

// DateTime formats t as "01 Mei 2024, 14:05:09".
func (l Locale) DateTime(t time.Time) string {
	return l.Date(t) + ", " + Clock(t.Hour(), t.Minute(), t.Second())
}

// Clock joins hour, minute and second as zero-padded HH:MM:SS.
func Clock(h, m, s int) string {
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
