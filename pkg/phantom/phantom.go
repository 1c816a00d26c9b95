// Package phantom generates synthetic test images and volumes with known
// ground truth. The generators produce binary masks; AddGaussianNoise turns
// them into reproducible noisy inputs for the denoising filters.
package phantom

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"tvdenoise/internal/models"
)

// Sphere returns a volume holding a filled {0,1} sphere mask.
//
// Parameters:
//   - width, height, depth: volume dimensions in voxels
//   - cx, cy, cz: sphere center
//   - radius: sphere radius in voxels
//
// Returns:
//   - a volume with 1 inside the sphere and 0 elsewhere
func Sphere(width, height, depth int, cx, cy, cz, radius float64) *models.Image3D {
	vol := models.NewImage3D(width, height, depth)
	r2 := radius * radius
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := float64(x) - cx
				dy := float64(y) - cy
				dz := float64(z) - cz
				if dx*dx+dy*dy+dz*dz <= r2 {
					vol.Set(x, y, z, 1)
				}
			}
		}
	}
	return vol
}

// Disk returns an image holding a filled {0,1} disk mask.
func Disk(width, height int, cx, cy, radius float64) *models.Image2D {
	img := models.NewImage2D(width, height)
	r2 := radius * radius
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r2 {
				img.Set(x, y, 1)
			}
		}
	}
	return img
}

// Checkerboard returns an image of alternating {0,1} cells.
func Checkerboard(width, height, cell int) *models.Image2D {
	img := models.NewImage2D(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if ((x/cell)+(y/cell))%2 == 0 {
				img.Set(x, y, 1)
			}
		}
	}
	return img
}

// StepEdge returns an image that is 0 left of the edge column and 1 from the
// edge column on.
func StepEdge(width, height, edgeX int) *models.Image2D {
	img := models.NewImage2D(width, height)
	for y := 0; y < height; y++ {
		for x := edgeX; x < width; x++ {
			img.Set(x, y, 1)
		}
	}
	return img
}

// AddGaussianNoise returns a copy of the image with zero-mean Gaussian noise
// added to every sample. The same seed always produces the same noise.
func AddGaussianNoise(img models.Image, sigma float64, seed uint64) models.Image {
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(seed)}
	switch v := img.(type) {
	case *models.Image2D:
		out := v.Clone()
		for i := range out.Data {
			out.Data[i] += dist.Rand()
		}
		return out
	case *models.Image3D:
		out := v.Clone()
		for i := range out.Data {
			out.Data[i] += dist.Rand()
		}
		return out
	default:
		return img
	}
}
