// Package noise estimates the standard deviation of additive Gaussian
// noise in an image, which is the main input for choosing denoising
// strength.
package noise

import (
	"math"

	"tvdenoise/internal/models"
)

// EstimateSigma estimates the noise standard deviation with the Immerkaer
// fast method. The image is convolved with the 3x3 difference operator
//
//	 1 -2  1
//	-2  4 -2
//	 1 -2  1
//
// which annihilates constant and linear structure, and the mean absolute
// response over the interior is rescaled to a Gaussian sigma. Volumes are
// estimated per plane and averaged. Images smaller than 3x3 return 0.
func EstimateSigma(img models.Image) float64 {
	switch v := img.(type) {
	case *models.Image2D:
		return immerkaerPlane(v.Data, v.Width, v.Height)
	case *models.Image3D:
		if v.Depth == 0 {
			return 0
		}
		plane := v.Width * v.Height
		total := 0.0
		for z := 0; z < v.Depth; z++ {
			total += immerkaerPlane(v.Data[z*plane:(z+1)*plane], v.Width, v.Height)
		}
		return total / float64(v.Depth)
	default:
		return 0
	}
}

// immerkaerPlane runs the Immerkaer estimator on a single plane.
func immerkaerPlane(data []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0
	}

	sum := 0.0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			response := 4*data[i] -
				2*(data[i-1]+data[i+1]+data[i-width]+data[i+width]) +
				data[i-width-1] + data[i-width+1] + data[i+width-1] + data[i+width+1]
			sum += math.Abs(response)
		}
	}

	interior := float64((width - 2) * (height - 2))
	return sum * math.Sqrt(0.5*math.Pi) / (6 * interior)
}
