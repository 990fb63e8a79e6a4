// Package thumbnail derives the three WebP renditions served by the
// API: a tiny placeholder, a grid thumbnail and a bounded preview.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"pixvault/infrastructure/storage"
)

// Size presets. Every rendition preserves aspect ratio within its
// bound; nothing is cropped.
const (
	TinySize      = 64
	ThumbSize     = 256
	PreviewWidth  = 1920
	PreviewHeight = 1080

	tinyQuality    = 70
	thumbQuality   = 85
	previewQuality = 85
)

// Result holds the storage keys of the generated renditions.
type Result struct {
	TinyPath    string
	ThumbPath   string
	PreviewPath string
}

// Generator renders WebP thumbnails into a storage backend.
type Generator struct {
	store storage.Backend
}

func NewGenerator(store storage.Backend) *Generator {
	return &Generator{store: store}
}

// Generate decodes the original, applies EXIF orientation, and writes
// the three renditions. Output keys mirror the original under
// thumbnails/, so re-running overwrites in place.
func (g *Generator) Generate(ctx context.Context, originalKey string, data []byte) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}

	img = flattenAlpha(img)

	result := &Result{
		TinyPath:    DerivedKey(originalKey, "tiny"),
		ThumbPath:   DerivedKey(originalKey, "thumb"),
		PreviewPath: DerivedKey(originalKey, "preview"),
	}

	tiny := boundedFit(img, TinySize, TinySize)
	if err := g.encodeTo(ctx, result.TinyPath, tiny, tinyQuality); err != nil {
		return nil, err
	}

	thumb := boundedFit(img, ThumbSize, ThumbSize)
	if err := g.encodeTo(ctx, result.ThumbPath, thumb, thumbQuality); err != nil {
		return nil, err
	}

	preview := boundedFit(img, PreviewWidth, PreviewHeight)
	if err := g.encodeTo(ctx, result.PreviewPath, preview, previewQuality); err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateFromImage renders a single bounded thumbnail from an already
// decoded image, used for face crops and video poster frames.
func (g *Generator) GenerateFromImage(ctx context.Context, key string, img image.Image, size int) error {
	img = flattenAlpha(img)
	return g.encodeTo(ctx, key, boundedFit(img, size, size), thumbQuality)
}

func (g *Generator) encodeTo(ctx context.Context, key string, img image.Image, quality int) error {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return fmt.Errorf("webp encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return fmt.Errorf("encode webp %s: %w", key, err)
	}

	if err := g.store.Write(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// DerivedKey maps an original storage key to its rendition key:
// originals/ab/cd/<hash>.jpg → thumbnails/ab/cd/<hash>_<kind>.webp.
func DerivedKey(originalKey, kind string) string {
	rel := strings.TrimPrefix(originalKey, "originals/")
	ext := path.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	return "thumbnails/" + base + "_" + kind + ".webp"
}

// boundedFit scales the image down to fit within maxW×maxH preserving
// aspect; images already inside the bound pass through unchanged.
func boundedFit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

// flattenAlpha composites transparent images onto a white background;
// lossy WebP has no alpha channel worth keeping for photos.
func flattenAlpha(img image.Image) image.Image {
	if _, ok := img.(*image.NRGBA); !ok {
		if _, ok := img.(*image.RGBA); !ok {
			return img
		}
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
