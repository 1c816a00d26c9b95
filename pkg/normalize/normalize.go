// Package normalize converts integer sample buffers into the canonical
// floating-point ranges the denoising filters operate on. Unsigned types map
// onto [0, 1] by dividing by the type maximum, signed types map onto [-1, 1]
// by dividing by the maximum positive value (the single most negative value
// clamps to -1), and floating-point input passes through unchanged.
package normalize

import (
	"image"
	"image/color"
	"math"

	"tvdenoise/internal/models"
)

// Uint8 maps 8-bit unsigned samples onto [0, 1].
func Uint8(src []uint8) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v) / 255.0
	}
	return out
}

// Uint16 maps 16-bit unsigned samples onto [0, 1].
func Uint16(src []uint16) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v) / 65535.0
	}
	return out
}

// Int8 maps 8-bit signed samples onto [-1, 1].
func Int8(src []int8) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = math.Max(float64(v)/float64(math.MaxInt8), -1)
	}
	return out
}

// Int16 maps 16-bit signed samples onto [-1, 1].
func Int16(src []int16) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = math.Max(float64(v)/float64(math.MaxInt16), -1)
	}
	return out
}

// Int32 maps 32-bit signed samples onto [-1, 1].
func Int32(src []int32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = math.Max(float64(v)/float64(math.MaxInt32), -1)
	}
	return out
}

// Float32 widens 32-bit float samples without rescaling.
func Float32(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

// FromGray converts an 8-bit grayscale image into a [0, 1] image buffer.
func FromGray(img *image.Gray) *models.Image2D {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := models.NewImage2D(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
			out.Data[y*width+x] = float64(v) / 255.0
		}
	}
	return out
}

// FromGray16 converts a 16-bit grayscale image into a [0, 1] image buffer.
func FromGray16(img *image.Gray16) *models.Image2D {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := models.NewImage2D(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := img.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
			out.Data[y*width+x] = float64(v) / 65535.0
		}
	}
	return out
}

// ToGray renders a [0, 1] image buffer as an 8-bit grayscale image.
// Values outside [0, 1] are clamped.
func ToGray(img *models.Image2D) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := clamp01(img.Data[y*img.Width+x])
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(v * 255.0))})
		}
	}
	return out
}

// ToGray16 renders a [0, 1] image buffer as a 16-bit grayscale image.
// Values outside [0, 1] are clamped.
func ToGray16(img *models.Image2D) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := clamp01(img.Data[y*img.Width+x])
			out.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * 65535.0))})
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
