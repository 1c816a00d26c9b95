package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedDimensionality is returned when image data of a rank
	// other than 2 or 3 reaches the boundary.
	ErrUnsupportedDimensionality = errors.New("models: image rank must be 2 or 3")

	// ErrShapeMismatch is returned when the sample count does not match the
	// product of the requested dimensions.
	ErrShapeMismatch = errors.New("models: data length does not match dimensions")
)

// Image is the common view over the two supported image ranks. The concrete
// type carries the rank decision, so downstream code switches on the variant
// once instead of re-checking shape in inner loops.
type Image interface {
	// Rank returns the number of spatial axes (2 or 3).
	Rank() int

	// Dims returns the axis lengths, width first.
	Dims() []int

	// Values returns the underlying sample buffer in row-major order.
	Values() []float64
}

// Image2D represents a dense 2D scalar image
type Image2D struct {
	// Data is the image data as a 1D array in row-major order
	Data []float64

	// Width is the width of the image in pixels
	Width int

	// Height is the height of the image in pixels
	Height int
}

// Image3D represents a dense 3D scalar volume
type Image3D struct {
	// Data is the volume data as a 1D array in row-major order
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int
}

// NewImage2D creates a zero-filled 2D image with the given dimensions.
func NewImage2D(width, height int) *Image2D {
	return &Image2D{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// NewImage3D creates a zero-filled 3D volume with the given dimensions.
func NewImage3D(width, height, depth int) *Image3D {
	return &Image3D{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
}

// NewImage wraps a raw sample buffer in the variant matching the number of
// dimensions given. This is the single place where the rank decision is made:
// two dims produce an Image2D, three an Image3D, and anything else fails with
// ErrUnsupportedDimensionality before any derived buffer is allocated.
//
// Parameters:
//   - data: samples in row-major order (x fastest, then y, then z)
//   - dims: axis lengths, width first
//
// Returns:
//   - the wrapped image, or an error if the rank or sample count is invalid
func NewImage(data []float64, dims ...int) (Image, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: axis length %d", ErrShapeMismatch, d)
		}
		n *= d
	}

	switch len(dims) {
	case 2:
		if len(data) != n {
			return nil, fmt.Errorf("%w: have %d samples, need %d", ErrShapeMismatch, len(data), n)
		}
		return &Image2D{Data: data, Width: dims[0], Height: dims[1]}, nil
	case 3:
		if len(data) != n {
			return nil, fmt.Errorf("%w: have %d samples, need %d", ErrShapeMismatch, len(data), n)
		}
		return &Image3D{Data: data, Width: dims[0], Height: dims[1], Depth: dims[2]}, nil
	default:
		return nil, fmt.Errorf("%w: got rank %d", ErrUnsupportedDimensionality, len(dims))
	}
}

// Rank returns 2.
func (img *Image2D) Rank() int { return 2 }

// Dims returns the width and height.
func (img *Image2D) Dims() []int { return []int{img.Width, img.Height} }

// Values returns the sample buffer.
func (img *Image2D) Values() []float64 { return img.Data }

// Idx returns the flat index of pixel (x, y).
func (img *Image2D) Idx(x, y int) int { return y*img.Width + x }

// At returns the sample at (x, y).
func (img *Image2D) At(x, y int) float64 { return img.Data[y*img.Width+x] }

// Set stores a sample at (x, y).
func (img *Image2D) Set(x, y int, v float64) { img.Data[y*img.Width+x] = v }

// Clone returns a deep copy of the image.
func (img *Image2D) Clone() *Image2D {
	data := make([]float64, len(img.Data))
	copy(data, img.Data)
	return &Image2D{Data: data, Width: img.Width, Height: img.Height}
}

// Rank returns 3.
func (img *Image3D) Rank() int { return 3 }

// Dims returns the width, height and depth.
func (img *Image3D) Dims() []int { return []int{img.Width, img.Height, img.Depth} }

// Values returns the sample buffer.
func (img *Image3D) Values() []float64 { return img.Data }

// Idx returns the flat index of voxel (x, y, z).
func (img *Image3D) Idx(x, y, z int) int {
	return z*img.Width*img.Height + y*img.Width + x
}

// At returns the sample at (x, y, z).
func (img *Image3D) At(x, y, z int) float64 {
	return img.Data[z*img.Width*img.Height+y*img.Width+x]
}

// Set stores a sample at (x, y, z).
func (img *Image3D) Set(x, y, z int, v float64) {
	img.Data[z*img.Width*img.Height+y*img.Width+x] = v
}

// Clone returns a deep copy of the volume.
func (img *Image3D) Clone() *Image3D {
	data := make([]float64, len(img.Data))
	copy(data, img.Data)
	return &Image3D{Data: data, Width: img.Width, Height: img.Height, Depth: img.Depth}
}
