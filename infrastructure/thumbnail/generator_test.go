package thumbnail

import (
	"image"
	"testing"
)

func TestDerivedKey(t *testing.T) {
	tests := []struct {
		original string
		kind     string
		want     string
	}{
		{"originals/ab/cd/abcdef.jpg", "tiny", "thumbnails/ab/cd/abcdef_tiny.webp"},
		{"originals/ab/cd/abcdef.jpg", "preview", "thumbnails/ab/cd/abcdef_preview.webp"},
		{"originals/ab/cd/abcdef.heic", "thumb", "thumbnails/ab/cd/abcdef_thumb.webp"},
	}

	for _, tt := range tests {
		if got := DerivedKey(tt.original, tt.kind); got != tt.want {
			t.Errorf("DerivedKey(%q, %q) = %q, want %q", tt.original, tt.kind, got, tt.want)
		}
	}
}

func TestThumbRenditionKeepsWideAspect(t *testing.T) {
	// A 200x100 panorama fits inside the thumb bound already and must
	// come through uncropped.
	wide := image.NewNRGBA(image.Rect(0, 0, 200, 100))

	out := boundedFit(wide, ThumbSize, ThumbSize)
	b := out.Bounds()

	if b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("wide source produced %dx%d, want 200x100 untouched", b.Dx(), b.Dy())
	}
}

func TestThumbRenditionDownscalesWithoutCropping(t *testing.T) {
	large := image.NewNRGBA(image.Rect(0, 0, 4000, 3000))

	out := boundedFit(large, ThumbSize, ThumbSize)
	b := out.Bounds()

	if b.Dx() > ThumbSize || b.Dy() > ThumbSize {
		t.Errorf("large source produced %dx%d, exceeds %dx%d", b.Dx(), b.Dy(), ThumbSize, ThumbSize)
	}

	ratio := float64(b.Dx()) / float64(b.Dy())
	if ratio < 1.32 || ratio > 1.35 {
		t.Errorf("aspect ratio %v drifted from 4:3", ratio)
	}
}

func TestBoundedFit(t *testing.T) {
	// Inside the bound: untouched.
	small := image.NewNRGBA(image.Rect(0, 0, 800, 600))
	if out := boundedFit(small, PreviewWidth, PreviewHeight); out != small {
		t.Error("image inside bound was modified")
	}

	// Outside: scaled down preserving aspect.
	large := image.NewNRGBA(image.Rect(0, 0, 4000, 3000))
	out := boundedFit(large, PreviewWidth, PreviewHeight)
	b := out.Bounds()
	if b.Dx() > PreviewWidth || b.Dy() > PreviewHeight {
		t.Errorf("fit produced %dx%d, exceeds %dx%d", b.Dx(), b.Dy(), PreviewWidth, PreviewHeight)
	}

	ratio := float64(b.Dx()) / float64(b.Dy())
	if ratio < 1.32 || ratio > 1.35 {
		t.Errorf("aspect ratio %v drifted from 4:3", ratio)
	}
}

func TestFlattenAlphaKeepsDimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 20))

	out := flattenAlpha(img)
	b := out.Bounds()
	if b.Dx() != 10 || b.Dy() != 20 {
		t.Errorf("flatten changed dimensions to %dx%d", b.Dx(), b.Dy())
	}
}
