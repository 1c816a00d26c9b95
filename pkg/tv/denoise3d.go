package tv

import (
	"context"
	"fmt"
	"math"
	"sync"

	"tvdenoise/internal/models"
)

const axes3D = 3

// chambolle3D holds the per-invocation buffers of the 3D optimizer. Compared
// to the 2D variant it carries a third dual field and walks the volume in
// z-major order, so bands become slabs of consecutive z planes.
type chambolle3D struct {
	im  []float64 // input samples, read only
	out []float64 // current primal estimate
	d   []float64 // divergence of the dual fields
	px  []float64 // dual field along x
	py  []float64 // dual field along y
	pz  []float64 // dual field along z

	w, h, depth int
	weight      float64
	workers     int
}

// Denoise3D denoises a 3D volume by TV minimization. The algorithm matches
// Denoise2D with a third axis: the descent step becomes 1/6 per axis and the
// gradient magnitude takes all three forward differences.
func Denoise3D(ctx context.Context, img *models.Image3D, opts Options) (*models.Image3D, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil volume", models.ErrUnsupportedDimensionality)
	}
	w, h, depth := img.Width, img.Height, img.Depth
	if w <= 0 || h <= 0 || depth <= 0 || len(img.Data) != w*h*depth {
		return nil, fmt.Errorf("%w: %dx%dx%d volume with %d samples", models.ErrShapeMismatch, w, h, depth, len(img.Data))
	}

	n := w * h * depth
	s := &chambolle3D{
		im:      img.Data,
		out:     make([]float64, n),
		d:       make([]float64, n),
		px:      make([]float64, n),
		py:      make([]float64, n),
		pz:      make([]float64, n),
		w:       w,
		h:       h,
		depth:   depth,
		weight:  opts.Weight,
		workers: opts.workerCount(depth),
	}

	count := float64(n)
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

	return &models.Image3D{Data: s.out, Width: w, Height: h, Depth: depth}, nil
}

// reconstruct computes the divergence of the three dual fields, forms the
// estimate out = im + d and returns the fidelity term sum(d^2).
func (s *chambolle3D) reconstruct() float64 {
	w, h := s.w, s.h
	plane := w * h
	return s.forEachSlab(func(z0, z1 int) float64 {
		sum := 0.0
		for z := z0; z < z1; z++ {
			for y := 0; y < h; y++ {
				base := z*plane + y*w
				for x := 0; x < w; x++ {
					i := base + x
					div := -s.px[i] - s.py[i] - s.pz[i]
					if x > 0 {
						div += s.px[i-1]
					}
					if y > 0 {
						div += s.py[i-w]
					}
					if z > 0 {
						div += s.pz[i-plane]
					}
					s.d[i] = div
					s.out[i] = s.im[i] + div
					sum += div * div
				}
			}
		}
		return sum
	})
}

// updateDual computes the forward differences of the current estimate,
// descends the dual fields and projects with the shared normalization
// factor. Returns the TV term sum(|grad out|).
func (s *chambolle3D) updateDual() float64 {
	w, h, depth := s.w, s.h, s.depth
	plane := w * h
	step := 1.0 / (2.0 * axes3D)
	halfInvWeight := 0.5 / s.weight
	return s.forEachSlab(func(z0, z1 int) float64 {
		sum := 0.0
		for z := z0; z < z1; z++ {
			for y := 0; y < h; y++ {
				base := z*plane + y*w
				for x := 0; x < w; x++ {
					i := base + x
					var gx, gy, gz float64
					if x < w-1 {
						gx = s.out[i+1] - s.out[i]
					}
					if y < h-1 {
						gy = s.out[i+w] - s.out[i]
					}
					if z < depth-1 {
						gz = s.out[i+plane] - s.out[i]
					}
					norm := math.Sqrt(gx*gx + gy*gy + gz*gz)
					sum += norm
					factor := norm*halfInvWeight + 1
					s.px[i] = (s.px[i] - step*gx) / factor
					s.py[i] = (s.py[i] - step*gy) / factor
					s.pz[i] = (s.pz[i] - step*gz) / factor
				}
			}
		}
		return sum
	})
}

// forEachSlab splits the z planes into contiguous slabs, runs fn concurrently
// on each slab and adds the partial sums in slab order.
func (s *chambolle3D) forEachSlab(fn func(z0, z1 int) float64) float64 {
	if s.workers <= 1 {
		return fn(0, s.depth)
	}

	slabsPerWorker := (s.depth + s.workers - 1) / s.workers
	partials := make([]float64, s.workers)

	var wg sync.WaitGroup
	for c := 0; c < s.workers; c++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			z0 := worker * slabsPerWorker
			z1 := z0 + slabsPerWorker
			if z1 > s.depth {
				z1 = s.depth
			}
			if z0 >= z1 {
				return
			}
			partials[worker] = fn(z0, z1)
		}(c)
	}
	wg.Wait()

	total := 0.0
	for _, p := range partials {
		total += p
	}
	return total
}
