package vision

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ToNCHW converts an image to a CHW float32 tensor with per-channel
// normalization: pixel = (pixel - mean) / std. The image is used at
// its current size; resize before calling.
func ToNCHW(img image.Image, mean, std [3]float32) []float32 {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// FitResult describes how an image was placed onto a square canvas.
type FitResult struct {
	Image image.Image
	// Scale maps original pixel coordinates to canvas coordinates.
	Scale float32
	// PadX and PadY are the canvas offsets of the resized image.
	PadX, PadY int
}

// FitSquare resizes an image to fit a size×size canvas preserving
// aspect ratio, anchored top-left, padding the remainder with padColor.
func FitSquare(img image.Image, size int, padColor color.Color) FitResult {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	scale := float32(size) / float32(w)
	if s := float32(size) / float32(h); s < scale {
		scale = s
	}

	newW := int(float32(w) * scale)
	newH := int(float32(h) * scale)
	resized := imaging.Resize(img, newW, newH, imaging.Linear)

	canvas := imaging.New(size, size, padColor)
	canvas = imaging.Paste(canvas, resized, image.Pt(0, 0))

	return FitResult{Image: canvas, Scale: scale}
}

// Letterbox resizes an image to fit a size×size canvas preserving
// aspect ratio and centers it, padding with padColor. Used by YOLO
// preprocessing where the pad is split evenly on both sides.
func Letterbox(img image.Image, size int, padColor color.Color) FitResult {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	scale := float32(size) / float32(w)
	if s := float32(size) / float32(h); s < scale {
		scale = s
	}

	newW := int(float32(w) * scale)
	newH := int(float32(h) * scale)
	resized := imaging.Resize(img, newW, newH, imaging.Linear)

	padX := (size - newW) / 2
	padY := (size - newH) / 2

	canvas := imaging.New(size, size, padColor)
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return FitResult{Image: canvas, Scale: scale, PadX: padX, PadY: padY}
}

// CenterCrop resizes the shortest side to resizeTo and crops a
// cropTo×cropTo square from the center.
func CenterCrop(img image.Image, resizeTo, cropTo int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w < h {
		img = imaging.Resize(img, resizeTo, 0, imaging.Linear)
	} else {
		img = imaging.Resize(img, 0, resizeTo, imaging.Linear)
	}

	return imaging.CropCenter(img, cropTo, cropTo)
}

// CropMargin extracts the region of img covered by a normalized box,
// expanded by margin on every side and clamped to the image bounds.
// Returns nil for degenerate regions.
func CropMargin(img image.Image, box Box, margin float32) image.Image {
	bounds := img.Bounds()
	w := float32(bounds.Dx())
	h := float32(bounds.Dy())

	bw := (box.X2 - box.X1) * w
	bh := (box.Y2 - box.Y1) * h
	if bw <= 0 || bh <= 0 {
		return nil
	}

	x1 := int(box.X1*w - bw*margin)
	y1 := int(box.Y1*h - bh*margin)
	x2 := int(box.X2*w + bw*margin)
	y2 := int(box.Y2*h + bh*margin)

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > bounds.Dx() {
		x2 = bounds.Dx()
	}
	if y2 > bounds.Dy() {
		y2 = bounds.Dy()
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	return imaging.Crop(img, image.Rect(bounds.Min.X+x1, bounds.Min.Y+y1, bounds.Min.X+x2, bounds.Min.Y+y2))
}

// ClampUnit clamps a normalized box to [0, 1] on both axes.
func ClampUnit(b Box) Box {
	clamp := func(v float32) float32 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Box{clamp(b.X1), clamp(b.Y1), clamp(b.X2), clamp(b.Y2)}
}
