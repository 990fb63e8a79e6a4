// Package exifmeta pulls capture metadata out of image files: pixel
// dimensions, capture time, GPS position and the raw tag dump stored
// alongside the asset.
package exifmeta

import (
	"bytes"
	"image"
	"math"
	"strconv"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"pixvault/pkg/logger"
)

// Metadata holds everything the extractor could recover. Absent fields
// stay nil or zero; extraction itself never fails for missing tags.
type Metadata struct {
	Width          int
	Height         int
	CapturedAt     *time.Time
	TimezoneOffset *int // minutes east of UTC
	Latitude       *float64
	Longitude      *float64
	CameraMake     string
	CameraModel    string
	// Raw maps tag names to their formatted values for the jsonb dump.
	Raw map[string]string
}

// datetimeLayouts are tried in order; the first parse wins.
var datetimeLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads metadata from raw image bytes. Files without EXIF
// still yield dimensions from the image header when decodable.
func (e *Extractor) Extract(data []byte) *Metadata {
	meta := &Metadata{Raw: map[string]string{}}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err == nil {
		e.readTags(rawExif, meta)
	}

	// Header decode covers dimensions when EXIF lacks them.
	if meta.Width == 0 || meta.Height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
		}
	}

	return meta
}

func (e *Extractor) readTags(rawExif []byte, meta *Metadata) {
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		logger.Debug(logger.CategoryIngest, "exif_parse", "EXIF block unreadable", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	tags := map[string]exif.ExifTag{}
	for _, entry := range entries {
		if entry.TagName == "" {
			continue
		}
		tags[entry.TagName] = entry
		if entry.Formatted != "" {
			meta.Raw[entry.TagName] = entry.Formatted
		}
	}

	if t, ok := tags["Make"]; ok {
		meta.CameraMake = strings.TrimSpace(t.Formatted)
	}
	if t, ok := tags["Model"]; ok {
		meta.CameraModel = strings.TrimSpace(t.Formatted)
	}

	if w := tagInt(tags, "PixelXDimension", "ImageWidth"); w > 0 {
		meta.Width = w
	}
	if h := tagInt(tags, "PixelYDimension", "ImageLength"); h > 0 {
		meta.Height = h
	}

	e.readCaptureTime(tags, meta)
	e.readGPS(tags, meta)
}

func (e *Extractor) readCaptureTime(tags map[string]exif.ExifTag, meta *Metadata) {
	var value string
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"} {
		if t, ok := tags[name]; ok && t.Formatted != "" {
			value = strings.TrimSpace(t.Formatted)
			break
		}
	}
	if value == "" {
		return
	}

	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			meta.CapturedAt = &ts
			break
		}
	}
	if meta.CapturedAt == nil {
		return
	}

	for _, name := range []string{"OffsetTimeOriginal", "OffsetTime"} {
		if t, ok := tags[name]; ok {
			if minutes, ok := parseUTCOffset(strings.TrimSpace(t.Formatted)); ok {
				meta.TimezoneOffset = &minutes
				break
			}
		}
	}
}

func (e *Extractor) readGPS(tags map[string]exif.ExifTag, meta *Metadata) {
	lat, latOK := tagDMS(tags, "GPSLatitude")
	lon, lonOK := tagDMS(tags, "GPSLongitude")
	if !latOK || !lonOK {
		return
	}

	latRef := tagString(tags, "GPSLatitudeRef")
	lonRef := tagString(tags, "GPSLongitudeRef")

	latVal := DMSToDecimal(lat[0], lat[1], lat[2], latRef)
	lonVal := DMSToDecimal(lon[0], lon[1], lon[2], lonRef)

	// (0, 0) is the null island default some cameras write.
	if latVal == 0 && lonVal == 0 {
		return
	}

	meta.Latitude = &latVal
	meta.Longitude = &lonVal
}

// DMSToDecimal converts degree/minute/second coordinates to a decimal
// value, negated for southern and western references and rounded to
// eight decimal places.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	v := deg + min/60 + sec/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		v = -v
	}
	return math.Round(v*1e8) / 1e8
}

// parseUTCOffset parses "+02:00" style offsets into minutes.
func parseUTCOffset(s string) (int, bool) {
	if len(s) < 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, false
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(s[4:6])
	if err != nil {
		return 0, false
	}
	total := hours*60 + minutes
	if s[0] == '-' {
		total = -total
	}
	return total, true
}

func tagString(tags map[string]exif.ExifTag, name string) string {
	if t, ok := tags[name]; ok {
		return t.Formatted
	}
	return ""
}

func tagInt(tags map[string]exif.ExifTag, names ...string) int {
	for _, name := range names {
		t, ok := tags[name]
		if !ok {
			continue
		}
		switch v := t.Value.(type) {
		case []uint16:
			if len(v) > 0 {
				return int(v[0])
			}
		case []uint32:
			if len(v) > 0 {
				return int(v[0])
			}
		case []int32:
			if len(v) > 0 {
				return int(v[0])
			}
		default:
			if n, err := strconv.Atoi(strings.TrimSpace(t.Formatted)); err == nil {
				return n
			}
		}
	}
	return 0
}

// tagDMS reads a GPS coordinate tag as its three rational components.
func tagDMS(tags map[string]exif.ExifTag, name string) ([3]float64, bool) {
	t, ok := tags[name]
	if !ok {
		return [3]float64{}, false
	}

	rats, ok := t.Value.([]exifcommon.Rational)
	if !ok || len(rats) != 3 {
		return [3]float64{}, false
	}

	var out [3]float64
	for i, r := range rats {
		if r.Denominator == 0 {
			return [3]float64{}, false
		}
		out[i] = float64(r.Numerator) / float64(r.Denominator)
	}
	return out, true
}
