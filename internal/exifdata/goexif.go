package exifdata

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"
)

func init() {
	// Register maker note parsers for better camera support
	exif.RegisterParsers(mknote.All...)
}

// GoexifDecoder reads EXIF blocks with goexif. Every tag is stored under both
// its name and its numeric id. Rationals become float64; multi-value tags keep
// their first value. Derived decimal "latitude"/"longitude" are added when the
// GPS block is complete.
type GoexifDecoder struct{}

// Decode implements Decoder.
func (GoexifDecoder) Decode(r io.Reader) (RawTagSet, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}

	tags := RawTagSet{}
	if err := x.Walk(tagWalker{tags: tags}); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}

	if lat, lon, err := x.LatLong(); err == nil {
		tags["latitude"] = lat
		tags["longitude"] = lon
	}

	return tags, nil
}

type tagWalker struct {
	tags RawTagSet
}

func (w tagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	v, ok := tagValue(tag)
	if !ok {
		return nil
	}
	w.tags[string(name)] = v
	w.tags[strconv.Itoa(int(tag.Id))] = v
	return nil
}

func tagValue(tag *tiff.Tag) (any, bool) {
	if tag == nil || tag.Count == 0 {
		return nil, false
	}

	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		return cleanString(s), true
	case tiff.IntVal:
		n, err := tag.Int64(0)
		if err != nil {
			return nil, false
		}
		return n, true
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return nil, false
		}
		return float64(num) / float64(den), true
	case tiff.FloatVal:
		f, err := tag.Float(0)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}
