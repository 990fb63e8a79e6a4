package exifmeta

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestDMSToDecimal(t *testing.T) {
	tests := []struct {
		name          string
		deg, min, sec float64
		ref           string
		want          float64
	}{
		{"north", 52, 30, 0, "N", 52.5},
		{"south negated", 33, 51, 36, "S", -33.86},
		{"west negated", 122, 25, 9.84, "W", -122.41940000},
		{"no ref", 10, 0, 0, "", 10},
		{"lowercase ref", 10, 30, 0, "s", -10.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DMSToDecimal(tt.deg, tt.min, tt.sec, tt.ref)
			if got != tt.want {
				t.Errorf("DMSToDecimal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		ok      bool
	}{
		{"+02:00", 120, true},
		{"-05:30", -330, true},
		{"+00:00", 0, true},
		{"02:00", 0, false},
		{"", 0, false},
		{"+2:00", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseUTCOffset(tt.in)
		if ok != tt.ok || got != tt.minutes {
			t.Errorf("parseUTCOffset(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.minutes, tt.ok)
		}
	}
}

func TestExtractFallsBackToHeaderDimensions(t *testing.T) {
	// A plain PNG has no EXIF; dimensions must come from the header.
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	meta := NewExtractor().Extract(buf.Bytes())

	if meta.Width != 320 || meta.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", meta.Width, meta.Height)
	}
	if meta.CapturedAt != nil {
		t.Errorf("unexpected capture time %v", meta.CapturedAt)
	}
	if meta.Latitude != nil || meta.Longitude != nil {
		t.Error("unexpected GPS position")
	}
}

func TestExtractGarbageInput(t *testing.T) {
	meta := NewExtractor().Extract([]byte("not an image at all"))

	if meta == nil {
		t.Fatal("expected metadata struct")
	}
	if meta.Width != 0 || meta.Height != 0 {
		t.Errorf("unexpected dimensions %dx%d", meta.Width, meta.Height)
	}
}
