// Package metrics computes quality measures for a denoised image or
// volume against a reference. All measures treat the inputs as flat
// intensity arrays in the nominal [0, 1] range; SSIM and PSNR assume a
// dynamic range of 1.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"tvdenoise/internal/models"
)

// Report holds the quality measures computed by Compare.
type Report struct {
	MSE             float64 // Mean squared error
	RMSE            float64 // Root mean squared error
	PSNR            float64 // Peak signal-to-noise ratio in dB, +Inf for identical inputs
	SSIM            float64 // Global structural similarity index
	MI              float64 // Mutual information under a Gaussian approximation
	EntropyDiff     float64 // Absolute Shannon entropy difference
	EdgeCorrelation float64 // Correlation between gradient magnitude maps
}

// Compare computes the full quality report between a reference image and a
// test image of the same rank and dimensions.
//
// Parameters:
//   - ref: reference image, typically the clean or original data
//   - test: image to evaluate, typically a denoised result
//
// Returns:
//   - Report: the computed quality measures
//   - error: non-nil when the images are nil or their dimensions differ
func Compare(ref, test models.Image) (Report, error) {
	if ref == nil || test == nil {
		return Report{}, fmt.Errorf("metrics: nil image: %w", models.ErrShapeMismatch)
	}
	if !sameDims(ref, test) {
		return Report{}, fmt.Errorf("metrics: dimensions %v and %v do not match: %w",
			ref.Dims(), test.Dims(), models.ErrShapeMismatch)
	}

	a := ref.Values()
	b := test.Values()

	mse := meanSquaredError(a, b)

	report := Report{
		MSE:             mse,
		RMSE:            math.Sqrt(mse),
		PSNR:            peakSignalToNoise(mse),
		SSIM:            structuralSimilarity(a, b),
		MI:              mutualInformation(a, b),
		EntropyDiff:     math.Abs(entropy(a) - entropy(b)),
		EdgeCorrelation: edgeCorrelation(ref, test),
	}
	return report, nil
}

// meanSquaredError computes the mean squared error between two arrays.
func meanSquaredError(a, b []float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum / float64(n)
}

// peakSignalToNoise converts an MSE into decibels against a unit peak.
func peakSignalToNoise(mse float64) float64 {
	if mse <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(1/mse)
}

// structuralSimilarity computes a global SSIM over the full arrays.
func structuralSimilarity(a, b []float64) float64 {
	// Constants for SSIM calculation
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	n := len(a)
	if n != len(b) || n == 0 {
		return 0
	}

	muX := stat.Mean(a, nil)
	muY := stat.Mean(b, nil)

	sigmaX := stat.Variance(a, nil)
	sigmaY := stat.Variance(b, nil)
	sigmaXY := stat.Covariance(a, b, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)

	if den > 0 {
		return num / den
	}
	return 0
}

// mutualInformation approximates the mutual information between two arrays
// assuming jointly Gaussian intensities:
//
//	MI ≈ 0.5 * log(var(X) * var(Y) / (var(X) * var(Y) - cov(X,Y)²))
//
// Perfectly correlated inputs make the determinant vanish, in which case 0
// is returned.
func mutualInformation(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n == 0 {
		return 0
	}

	varA := stat.Variance(a, nil)
	varB := stat.Variance(b, nil)
	covar := stat.Covariance(a, b, nil)

	if varA > 0 && varB > 0 {
		determinant := varA*varB - covar*covar
		if determinant > 0 {
			return 0.5 * math.Log(varA*varB/determinant)
		}
	}
	return 0
}

// entropy computes the Shannon entropy of the data over a 256 bin histogram.
func entropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	lo, hi := findMinMax(data)
	if hi <= lo {
		return 0
	}

	const numBins = 256

	hist := make([]float64, numBins)
	binWidth := (hi - lo) / float64(numBins)

	for _, v := range data {
		binIdx := int((v - lo) / binWidth)
		if binIdx >= numBins {
			binIdx = numBins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	result := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			result -= p * math.Log2(p)
		}
	}
	return result
}

// findMinMax returns the minimum and maximum values in a slice.
func findMinMax(data []float64) (lo, hi float64) {
	if len(data) == 0 {
		return 0, 0
	}

	lo = data[0]
	hi = data[0]

	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// edgeCorrelation measures how well edges survive processing as the
// correlation between the gradient magnitude maps of the two images.
// Flat maps have no defined correlation and yield 0.
func edgeCorrelation(ref, test models.Image) float64 {
	edgesRef := gradientMagnitude(ref)
	edgesTest := gradientMagnitude(test)

	if stat.Variance(edgesRef, nil) == 0 || stat.Variance(edgesTest, nil) == 0 {
		return 0
	}
	return stat.Correlation(edgesRef, edgesTest, nil)
}

// gradientMagnitude computes the forward-difference gradient magnitude at
// every sample. Differences past the last sample of an axis are zero.
func gradientMagnitude(img models.Image) []float64 {
	switch v := img.(type) {
	case *models.Image2D:
		w, h := v.Width, v.Height
		mag := make([]float64, len(v.Data))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				var gx, gy float64
				if x < w-1 {
					gx = v.Data[i+1] - v.Data[i]
				}
				if y < h-1 {
					gy = v.Data[i+w] - v.Data[i]
				}
				mag[i] = math.Sqrt(gx*gx + gy*gy)
			}
		}
		return mag
	case *models.Image3D:
		w, h, d := v.Width, v.Height, v.Depth
		plane := w * h
		mag := make([]float64, len(v.Data))
		for z := 0; z < d; z++ {
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					i := z*plane + y*w + x
					var gx, gy, gz float64
					if x < w-1 {
						gx = v.Data[i+1] - v.Data[i]
					}
					if y < h-1 {
						gy = v.Data[i+w] - v.Data[i]
					}
					if z < d-1 {
						gz = v.Data[i+plane] - v.Data[i]
					}
					mag[i] = math.Sqrt(gx*gx + gy*gy + gz*gz)
				}
			}
		}
		return mag
	default:
		return nil
	}
}

// sameDims reports whether two images have identical rank and dimensions.
func sameDims(a, b models.Image) bool {
	da, db := a.Dims(), b.Dims()
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}
