package metrics

import (
	"errors"
	"math"
	"testing"

	"tvdenoise/internal/models"
	"tvdenoise/pkg/phantom"
)

// rampImage creates a 2-D image whose intensity increases linearly with the
// flat index, giving every metric a non-degenerate input.
func rampImage(width, height int) *models.Image2D {
	img := models.NewImage2D(width, height)
	for i := range img.Data {
		img.Data[i] = float64(i) / float64(len(img.Data)-1)
	}
	return img
}

// TestCompareRejectsMismatchedShapes verifies that Compare refuses inputs
// whose rank or dimensions differ.
func TestCompareRejectsMismatchedShapes(t *testing.T) {
	testCases := []struct {
		name string
		ref  models.Image
		test models.Image
	}{
		{"NilReference", nil, models.NewImage2D(4, 4)},
		{"NilTest", models.NewImage2D(4, 4), nil},
		{"DifferentWidth", models.NewImage2D(4, 4), models.NewImage2D(5, 4)},
		{"DifferentRank", models.NewImage2D(4, 4), models.NewImage3D(4, 4, 1)},
		{"DifferentDepth", models.NewImage3D(4, 4, 2), models.NewImage3D(4, 4, 3)},
	}

	for _, tc := range testCases {
		_, err := Compare(tc.ref, tc.test)
		if err == nil {
			t.Errorf("%s: expected an error, got nil", tc.name)
			continue
		}
		if !errors.Is(err, models.ErrShapeMismatch) {
			t.Errorf("%s: expected ErrShapeMismatch, got %v", tc.name, err)
		}
	}
}

// TestCompareIdenticalImages verifies the report for a perfect match.
func TestCompareIdenticalImages(t *testing.T) {
	img := phantom.Checkerboard(16, 16, 4)

	report, err := Compare(img, img)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if report.MSE != 0 {
		t.Errorf("MSE of identical images: expected 0, got %g", report.MSE)
	}
	if report.RMSE != 0 {
		t.Errorf("RMSE of identical images: expected 0, got %g", report.RMSE)
	}
	if !math.IsInf(report.PSNR, 1) {
		t.Errorf("PSNR of identical images: expected +Inf, got %g", report.PSNR)
	}
	if math.Abs(report.SSIM-1) > 1e-12 {
		t.Errorf("SSIM of identical images: expected 1, got %g", report.SSIM)
	}
	if report.EntropyDiff != 0 {
		t.Errorf("EntropyDiff of identical images: expected 0, got %g", report.EntropyDiff)
	}
	if math.Abs(report.EdgeCorrelation-1) > 1e-12 {
		t.Errorf("EdgeCorrelation of identical images: expected 1, got %g", report.EdgeCorrelation)
	}
}

// TestCompareDetectsDegradation verifies that a noisy copy scores worse than
// the clean reference on the distance measures.
func TestCompareDetectsDegradation(t *testing.T) {
	clean := phantom.Checkerboard(32, 32, 8)
	noisy := phantom.AddGaussianNoise(clean, 0.2, 11)

	report, err := Compare(clean, noisy)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// With sigma=0.2 the expected MSE is about 0.04.
	if report.MSE < 0.02 || report.MSE > 0.08 {
		t.Errorf("MSE: expected around 0.04, got %g", report.MSE)
	}
	if math.Abs(report.RMSE-math.Sqrt(report.MSE)) > 1e-12 {
		t.Errorf("RMSE should be sqrt(MSE): got %g for MSE %g", report.RMSE, report.MSE)
	}
	if math.IsInf(report.PSNR, 1) || report.PSNR > 20 {
		t.Errorf("PSNR: expected a finite value below 20 dB, got %g", report.PSNR)
	}
	if report.SSIM >= 1 {
		t.Errorf("SSIM: expected below 1 for a degraded image, got %g", report.SSIM)
	}
	if report.MI <= 0 {
		t.Errorf("MI: expected positive for correlated images, got %g", report.MI)
	}
}

// TestCompareSupportsVolumes verifies that 3-D inputs produce a report.
func TestCompareSupportsVolumes(t *testing.T) {
	clean := phantom.Sphere(12, 12, 12, 6, 6, 6, 4)
	noisy := phantom.AddGaussianNoise(clean, 0.1, 7)

	report, err := Compare(clean, noisy)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if report.MSE <= 0 {
		t.Errorf("MSE: expected positive, got %g", report.MSE)
	}
	if report.EdgeCorrelation <= 0 {
		t.Errorf("EdgeCorrelation: expected positive for a noisy sphere, got %g", report.EdgeCorrelation)
	}
}

// TestPeakSignalToNoise verifies the dB conversion against known values.
func TestPeakSignalToNoise(t *testing.T) {
	testCases := []struct {
		mse      float64
		expected float64
	}{
		{0.01, 20},
		{0.0001, 40},
		{1, 0},
	}

	for _, tc := range testCases {
		result := peakSignalToNoise(tc.mse)
		if math.Abs(result-tc.expected) > 1e-9 {
			t.Errorf("peakSignalToNoise(%g): expected %g, got %g", tc.mse, tc.expected, result)
		}
	}

	if !math.IsInf(peakSignalToNoise(0), 1) {
		t.Errorf("peakSignalToNoise(0): expected +Inf")
	}
}

// TestEntropy verifies the histogram entropy on known distributions.
func TestEntropy(t *testing.T) {
	flat := make([]float64, 64)
	for i := range flat {
		flat[i] = 0.5
	}
	if got := entropy(flat); got != 0 {
		t.Errorf("entropy of constant data: expected 0, got %g", got)
	}

	// Half zeros, half ones carry exactly one bit.
	twoLevel := make([]float64, 64)
	for i := range twoLevel {
		if i%2 == 0 {
			twoLevel[i] = 1
		}
	}
	if got := entropy(twoLevel); math.Abs(got-1) > 1e-12 {
		t.Errorf("entropy of two-level data: expected 1 bit, got %g", got)
	}
}

// TestMutualInformationDegenerateInputs verifies the zero fallbacks.
func TestMutualInformationDegenerateInputs(t *testing.T) {
	ramp := rampImage(8, 8).Data

	flat := make([]float64, len(ramp))
	if got := mutualInformation(ramp, flat); got != 0 {
		t.Errorf("MI against constant data: expected 0, got %g", got)
	}

	// Perfect correlation makes the Gaussian determinant vanish.
	if got := mutualInformation(ramp, ramp); got != 0 {
		t.Errorf("MI of identical data: expected the degenerate fallback 0, got %g", got)
	}
}

// TestGradientMagnitude verifies the edge map on a vertical step edge.
func TestGradientMagnitude(t *testing.T) {
	img := phantom.StepEdge(4, 3, 2)

	mag := gradientMagnitude(img)
	if len(mag) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(mag))
	}

	// The forward difference fires one column before the step.
	for y := 0; y < 3; y++ {
		if got := mag[y*4+1]; math.Abs(got-1) > 1e-12 {
			t.Errorf("row %d: expected magnitude 1 at the step, got %g", y, got)
		}
		if got := mag[y*4+2]; y < 2 && math.Abs(got) > 1e-12 {
			t.Errorf("row %d: expected magnitude 0 past the step, got %g", y, got)
		}
	}
}
