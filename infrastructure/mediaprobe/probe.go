// Package mediaprobe shells out to ffprobe/ffmpeg for video metadata
// and poster frames. Both binaries are expected on PATH.
package mediaprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// VideoInfo is what the pipeline keeps from a probe run.
type VideoInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
	CreatedAt       *time.Time
}

type Prober struct {
	ffprobePath string
	ffmpegPath  string
}

func NewProber(ffprobePath, ffmpegPath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Prober{ffprobePath: ffprobePath, ffmpegPath: ffmpegPath}
}

// Probe inspects the video at path.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return parseProbeOutput(out.Bytes())
}

// PosterFrame extracts a single frame at the given offset as PNG bytes.
func (p *Prober) PosterFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-v", "quiet",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 2, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg poster frame %s: %w", path, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg poster frame %s: empty output", path)
	}

	return out.Bytes(), nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Tags     struct {
			CreationTime string `json:"creation_time"`
		} `json:"tags"`
	} `json:"format"`
}

// creationTimeLayouts cover the formats containers commonly carry.
var creationTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
}

func parseProbeOutput(data []byte) (*VideoInfo, error) {
	var parsed probeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}

	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}

	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.DurationSeconds = d
		}
	}

	if raw := parsed.Format.Tags.CreationTime; raw != "" {
		for _, layout := range creationTimeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				utc := ts.UTC()
				info.CreatedAt = &utc
				break
			}
		}
	}

	return info, nil
}
