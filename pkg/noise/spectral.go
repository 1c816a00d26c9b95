package noise

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"tvdenoise/internal/models"
)

// EstimateSigmaSpectral estimates the noise standard deviation from the
// high-frequency tail of the 2-D power spectrum. White Gaussian noise
// spreads its power evenly over all frequencies while natural image content
// concentrates near DC, so the median power of the outer frequency band is
// dominated by noise alone. For a complex coefficient of an unnormalized
// transform that median is N*sigma^2*ln(2), which is inverted here.
//
// Images smaller than 8x8 return 0.
func EstimateSigmaSpectral(img *models.Image2D) float64 {
	if img == nil || img.Width < 8 || img.Height < 8 {
		return 0
	}
	w, h := img.Width, img.Height

	spectrum := make([]complex128, w*h)
	for i, v := range img.Data {
		spectrum[i] = complex(v, 0)
	}

	// Row transforms in place, then column transforms through a scratch
	// buffer, give the full 2-D spectrum.
	rowFFT := fourier.NewCmplxFFT(w)
	for y := 0; y < h; y++ {
		row := spectrum[y*w : (y+1)*w]
		rowFFT.Coefficients(row, row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = spectrum[y*w+x]
		}
		colFFT.Coefficients(col, col)
		for y := 0; y < h; y++ {
			spectrum[y*w+x] = col[y]
		}
	}

	// Keep coefficients whose distance from DC exceeds a quarter of the
	// extent on both axes.
	var band []float64
	for y := 0; y < h; y++ {
		if min(y, h-y) <= h/4 {
			continue
		}
		for x := 0; x < w; x++ {
			if min(x, w-x) <= w/4 {
				continue
			}
			c := spectrum[y*w+x]
			re, im := real(c), imag(c)
			band = append(band, re*re+im*im)
		}
	}
	if len(band) == 0 {
		return 0
	}

	med := median(band)
	return math.Sqrt(med / (float64(w*h) * math.Ln2))
}

// median returns the middle value of the data, averaging the two central
// values for even lengths. The input slice is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)

	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
