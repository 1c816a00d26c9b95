package tv

import (
	"context"
	"fmt"
	"math"
	"sync"

	"tvdenoise/internal/models"
)

const axes2D = 2

// chambolle2D holds the per-invocation buffers of the 2D optimizer. The dual
// fields px and py belong to the horizontal and vertical axes; they are
// created zeroed and never leave this struct.
type chambolle2D struct {
	im  []float64 // input samples, read only
	out []float64 // current primal estimate
	d   []float64 // divergence of the dual fields
	px  []float64 // dual field along x
	py  []float64 // dual field along y

	w, h    int
	weight  float64
	workers int
}

// Denoise2D denoises a 2D image by TV minimization.
//
// Each iteration reconstructs the estimate out = im + div(p), evaluates the
// energy sum(d^2) + weight*sum(|grad out|) over the element count, then
// descends and projects the dual fields. Iteration 0 records the initial
// energy; afterwards the loop stops when the energy change drops below
// eps times that initial energy, or when the iteration cap is reached.
//
// Parameters:
//   - ctx: checked once per iteration; cancellation aborts without a result
//   - img: the image to denoise, left unmodified
//   - opts: optimizer settings, see Options
//
// Returns:
//   - a fresh image with the denoised samples, or an error for invalid
//     options or a malformed image
func Denoise2D(ctx context.Context, img *models.Image2D, opts Options) (*models.Image2D, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", models.ErrUnsupportedDimensionality)
	}
	w, h := img.Width, img.Height
	if w <= 0 || h <= 0 || len(img.Data) != w*h {
		return nil, fmt.Errorf("%w: %dx%d image with %d samples", models.ErrShapeMismatch, w, h, len(img.Data))
	}

	s := &chambolle2D{
		im:      img.Data,
		out:     make([]float64, w*h),
		d:       make([]float64, w*h),
		px:      make([]float64, w*h),
		py:      make([]float64, w*h),
		w:       w,
		h:       h,
		weight:  opts.Weight,
		workers: opts.workerCount(h),
	}

	count := float64(w * h)
	var eInit, ePrev float64
	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fidelity := s.reconstruct()
		tvTerm := s.updateDual()
		energy := (fidelity + opts.Weight*tvTerm) / count

		opts.logIteration(iter, energy)

		if iter == 0 {
			eInit = energy
			ePrev = energy
			continue
		}
		if math.Abs(ePrev-energy) < opts.Eps*eInit {
			break
		}
		ePrev = energy
	}

	return &models.Image2D{Data: s.out, Width: w, Height: h}, nil
}

// reconstruct computes the divergence of the dual fields, forms the estimate
// out = im + d and returns the fidelity term sum(d^2). Index 0 along each
// axis receives no contribution from a previous neighbor.
func (s *chambolle2D) reconstruct() float64 {
	w := s.w
	return s.forEachRowBand(func(y0, y1 int) float64 {
		sum := 0.0
		for y := y0; y < y1; y++ {
			base := y * w
			for x := 0; x < w; x++ {
				i := base + x
				div := -s.px[i] - s.py[i]
				if x > 0 {
					div += s.px[i-1]
				}
				if y > 0 {
					div += s.py[i-w]
				}
				s.d[i] = div
				s.out[i] = s.im[i] + div
				sum += div * div
			}
		}
		return sum
	})
}

// updateDual computes the forward differences of the current estimate (zero
// at the last index of each axis), descends each dual field and projects with
// a single normalization factor shared across axes. Returns the TV term
// sum(|grad out|).
func (s *chambolle2D) updateDual() float64 {
	w, h := s.w, s.h
	step := 1.0 / (2.0 * axes2D)
	halfInvWeight := 0.5 / s.weight
	return s.forEachRowBand(func(y0, y1 int) float64 {
		sum := 0.0
		for y := y0; y < y1; y++ {
			base := y * w
			for x := 0; x < w; x++ {
				i := base + x
				var gx, gy float64
				if x < w-1 {
					gx = s.out[i+1] - s.out[i]
				}
				if y < h-1 {
					gy = s.out[i+w] - s.out[i]
				}
				norm := math.Sqrt(gx*gx + gy*gy)
				sum += norm
				factor := norm*halfInvWeight + 1
				s.px[i] = (s.px[i] - step*gx) / factor
				s.py[i] = (s.py[i] - step*gy) / factor
			}
		}
		return sum
	})
}

// forEachRowBand splits the rows into contiguous bands, runs fn concurrently
// on each band and adds the partial sums in band order. Reads and writes of
// distinct bands never overlap within one pass.
func (s *chambolle2D) forEachRowBand(fn func(y0, y1 int) float64) float64 {
	if s.workers <= 1 {
		return fn(0, s.h)
	}

	rowsPerWorker := (s.h + s.workers - 1) / s.workers
	partials := make([]float64, s.workers)

	var wg sync.WaitGroup
	for c := 0; c < s.workers; c++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			y0 := worker * rowsPerWorker
			y1 := y0 + rowsPerWorker
			if y1 > s.h {
				y1 = s.h
			}
			if y0 >= y1 {
				return
			}
			partials[worker] = fn(y0, y1)
		}(c)
	}
	wg.Wait()

	total := 0.0
	for _, p := range partials {
		total += p
	}
	return total
}
