// Package bilateral implements bilateral filtering of 2D images and 3D
// volumes. Each output sample is a normalized average of its window,
// weighted by spatial closeness and by radiometric closeness, so smoothing
// happens within regions while sharp transitions survive.
//
// Naming note kept from the original contract: SigmaColor is the radiometric
// standard deviation and SigmaRange the spatial one.
package bilateral

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"gonum.org/v1/gonum/mat"

	"tvdenoise/internal/models"
)

// ErrInvalidParameter is returned when an option fails validation before any
// filtering work starts.
var ErrInvalidParameter = errors.New("bilateral: invalid parameter")

// Mode selects how window taps outside the image bounds are resolved.
type Mode int

const (
	// ModeConstant substitutes CVal for out-of-bounds taps.
	ModeConstant Mode = iota

	// ModeWrap wraps indices around the opposite border.
	ModeWrap

	// ModeReflect mirrors indices at the border without repeating the edge
	// sample's position.
	ModeReflect

	// ModeNearest clamps indices to the nearest edge sample.
	ModeNearest
)

// ParseMode maps the textual border mode onto its enum value. Anything
// outside constant|wrap|reflect|nearest fails with ErrInvalidParameter.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "constant":
		return ModeConstant, nil
	case "wrap":
		return ModeWrap, nil
	case "reflect":
		return ModeReflect, nil
	case "nearest":
		return ModeNearest, nil
	default:
		return 0, fmt.Errorf("%w: unknown border mode %q", ErrInvalidParameter, s)
	}
}

// String returns the textual form accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case ModeConstant:
		return "constant"
	case ModeWrap:
		return "wrap"
	case ModeReflect:
		return "reflect"
	case ModeNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m >= ModeConstant && m <= ModeNearest
}

// Options controls the filter.
type Options struct {
	// WinSize is the full window width per axis. Must be odd.
	WinSize int

	// SigmaColor is the radiometric standard deviation: how far apart two
	// sample values may lie and still average together.
	SigmaColor float64

	// SigmaRange is the spatial standard deviation of the window weights.
	SigmaRange float64

	// Bins is the resolution of the precomputed radiometric weight table.
	Bins int

	// Mode selects the border handling for window taps outside the image.
	Mode Mode

	// CVal is the fill value used by ModeConstant.
	CVal float64

	// Workers is the number of goroutines used across image rows or volume
	// planes. Zero or negative selects runtime.NumCPU.
	Workers int
}

// DefaultOptions returns the standard filter settings.
func DefaultOptions() Options {
	return Options{
		WinSize:    5,
		SigmaColor: 1.0,
		SigmaRange: 1.0,
		Bins:       10000,
		Mode:       ModeConstant,
		CVal:       0,
		Workers:    runtime.NumCPU(),
	}
}

func (o Options) validate() error {
	if !o.Mode.valid() {
		return fmt.Errorf("%w: unknown border mode %q", ErrInvalidParameter, o.Mode)
	}
	if o.WinSize <= 0 || o.WinSize%2 == 0 {
		return fmt.Errorf("%w: window size must be positive and odd, got %d", ErrInvalidParameter, o.WinSize)
	}
	if o.SigmaColor <= 0 {
		return fmt.Errorf("%w: sigma color must be positive, got %g", ErrInvalidParameter, o.SigmaColor)
	}
	if o.SigmaRange <= 0 {
		return fmt.Errorf("%w: sigma range must be positive, got %g", ErrInvalidParameter, o.SigmaRange)
	}
	if o.Bins <= 0 {
		return fmt.Errorf("%w: bins must be positive, got %d", ErrInvalidParameter, o.Bins)
	}
	return nil
}

func (o Options) workerCount(bands int) int {
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > bands {
		workers = bands
	}
	return workers
}

// Denoise validates the options and routes the image to the filter variant
// matching its rank. A volume whose depth is a single plane is collapsed to
// 2D first, and the filtered 2D image is returned in that case.
func Denoise(img models.Image, opts Options) (models.Image, error) {
	switch v := img.(type) {
	case *models.Image2D:
		return Denoise2D(v, opts)
	case *models.Image3D:
		if v.Depth == 1 {
			return Denoise2D(&models.Image2D{Data: v.Data, Width: v.Width, Height: v.Height}, opts)
		}
		return Denoise3D(v, opts)
	default:
		return nil, fmt.Errorf("%w: got %T", models.ErrUnsupportedDimensionality, img)
	}
}

// gaussianVec samples an unnormalized Gaussian at integer offsets
// -radius..radius.
func gaussianVec(radius int, sigma float64) *mat.VecDense {
	v := mat.NewVecDense(2*radius+1, nil)
	for i := 0; i < v.Len(); i++ {
		d := float64(i - radius)
		v.SetVec(i, math.Exp(-0.5*d*d/(sigma*sigma)))
	}
	return v
}

// spatialKernel2D builds the window weight matrix as the outer product of
// two 1D Gaussians.
func spatialKernel2D(radius int, sigma float64) *mat.Dense {
	g := gaussianVec(radius, sigma)
	k := mat.NewDense(g.Len(), g.Len(), nil)
	k.Outer(1, g, g)
	return k
}

// colorTable is the quantized radiometric weight lookup. Index 0 holds the
// weight for identical values; the last index covers the image's full
// dynamic range.
type colorTable struct {
	weights []float64
	scale   float64
}

func newColorTable(bins int, sigma, maxDelta float64) colorTable {
	weights := make([]float64, bins)
	if bins == 1 || maxDelta <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		return colorTable{weights: weights}
	}

	width := maxDelta / float64(bins-1)
	for i := range weights {
		d := float64(i) * width
		weights[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
	}
	return colorTable{weights: weights, scale: float64(bins-1) / maxDelta}
}

func (t colorTable) weight(delta float64) float64 {
	idx := int(math.Abs(delta)*t.scale + 0.5)
	if idx >= len(t.weights) {
		idx = len(t.weights) - 1
	}
	return t.weights[idx]
}

// resolveIndex maps a window tap index onto a valid sample index per the
// border mode. The second result is false only under ModeConstant when the
// tap falls outside the image, in which case the caller substitutes CVal.
func resolveIndex(i, n int, mode Mode) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch mode {
	case ModeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i, true
	case ModeReflect:
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return i, true
	case ModeNearest:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	default:
		return 0, false
	}
}

func dynamicRange(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
