package bilateral

import (
	"fmt"
	"sync"

	"tvdenoise/internal/models"
)

// Denoise3D bilateral-filters a 3D volume. The window is cubic: the 2D
// spatial kernel weights the in-plane offsets and a 1D Gaussian weights the
// plane distance.
func Denoise3D(img *models.Image3D, opts Options) (*models.Image3D, error) {
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

	radius := opts.WinSize / 2
	plane := w * h
	spatial := spatialKernel2D(radius, opts.SigmaRange)
	axial := gaussianVec(radius, opts.SigmaRange)
	colors := newColorTable(opts.Bins, opts.SigmaColor, dynamicRange(img.Data))

	src := img.Data
	dst := make([]float64, len(src))

	filterPlanes := func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					center := src[z*plane+y*w+x]
					sum, weightSum := 0.0, 0.0
					for dz := -radius; dz <= radius; dz++ {
						zz, insideZ := resolveIndex(z+dz, depth, opts.Mode)
						wz := axial.AtVec(dz + radius)
						for dy := -radius; dy <= radius; dy++ {
							yy, insideY := resolveIndex(y+dy, h, opts.Mode)
							for dx := -radius; dx <= radius; dx++ {
								xx, insideX := resolveIndex(x+dx, w, opts.Mode)

								v := opts.CVal
								if insideZ && insideY && insideX {
									v = src[zz*plane+yy*w+xx]
								}

								wt := wz * spatial.At(dy+radius, dx+radius) * colors.weight(v-center)
								sum += wt * v
								weightSum += wt
							}
						}
					}
					dst[z*plane+y*w+x] = sum / weightSum
				}
			}
		}
	}

	workers := opts.workerCount(depth)
	if workers <= 1 {
		filterPlanes(0, depth)
	} else {
		planesPerWorker := (depth + workers - 1) / workers
		var wg sync.WaitGroup
		for c := 0; c < workers; c++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()

				z0 := worker * planesPerWorker
				z1 := z0 + planesPerWorker
				if z1 > depth {
					z1 = depth
				}
				if z0 >= z1 {
					return
				}
				filterPlanes(z0, z1)
			}(c)
		}
		wg.Wait()
	}

	return &models.Image3D{Data: dst, Width: w, Height: h, Depth: depth}, nil
}
