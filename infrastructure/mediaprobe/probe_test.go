package mediaprobe

import (
	"testing"
	"time"
)

func TestParseProbeOutput(t *testing.T) {
	payload := `{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 1080}
		],
		"format": {
			"duration": "12.480000",
			"tags": {"creation_time": "2024-06-15T10:30:00.000000Z"}
		}
	}`

	info, err := parseProbeOutput([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}

	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.DurationSeconds != 12.48 {
		t.Errorf("duration = %v, want 12.48", info.DurationSeconds)
	}
	if info.CreatedAt == nil {
		t.Fatal("creation time missing")
	}
	want := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	if !info.CreatedAt.Equal(want) {
		t.Errorf("creation time = %v, want %v", info.CreatedAt, want)
	}
}

func TestParseProbeOutputSparse(t *testing.T) {
	// Audio-only file without tags: fields stay zero, no error.
	payload := `{"streams": [{"codec_type": "audio"}], "format": {}}`

	info, err := parseProbeOutput([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}

	if info.Width != 0 || info.Height != 0 || info.DurationSeconds != 0 || info.CreatedAt != nil {
		t.Errorf("expected zero info, got %+v", info)
	}
}

func TestParseProbeOutputInvalid(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
