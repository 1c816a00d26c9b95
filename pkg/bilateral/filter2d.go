package bilateral

import (
	"fmt"
	"sync"

	"tvdenoise/internal/models"
)

// Denoise2D bilateral-filters a 2D image.
//
// Parameters:
//   - img: the image to filter, left unmodified
//   - opts: filter settings, see Options
//
// Returns:
//   - a fresh image with the filtered samples, or an error for invalid
//     options or a malformed image
func Denoise2D(img *models.Image2D, opts Options) (*models.Image2D, error) {
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

	radius := opts.WinSize / 2
	spatial := spatialKernel2D(radius, opts.SigmaRange)
	colors := newColorTable(opts.Bins, opts.SigmaColor, dynamicRange(img.Data))

	src := img.Data
	dst := make([]float64, len(src))

	filterRows := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				center := src[y*w+x]
				sum, weightSum := 0.0, 0.0
				for dy := -radius; dy <= radius; dy++ {
					yy, insideY := resolveIndex(y+dy, h, opts.Mode)
					for dx := -radius; dx <= radius; dx++ {
						xx, insideX := resolveIndex(x+dx, w, opts.Mode)

						v := opts.CVal
						if insideY && insideX {
							v = src[yy*w+xx]
						}

						wt := spatial.At(dy+radius, dx+radius) * colors.weight(v-center)
						sum += wt * v
						weightSum += wt
					}
				}
				dst[y*w+x] = sum / weightSum
			}
		}
	}

	workers := opts.workerCount(h)
	if workers <= 1 {
		filterRows(0, h)
	} else {
		rowsPerWorker := (h + workers - 1) / workers
		var wg sync.WaitGroup
		for c := 0; c < workers; c++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()

				y0 := worker * rowsPerWorker
				y1 := y0 + rowsPerWorker
				if y1 > h {
					y1 = h
				}
				if y0 >= y1 {
					return
				}
				filterRows(y0, y1)
			}(c)
		}
		wg.Wait()
	}

	return &models.Image2D{Data: dst, Width: w, Height: h}, nil
}
