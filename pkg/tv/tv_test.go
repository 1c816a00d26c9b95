package tv_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tvdenoise/internal/models"
	"tvdenoise/pkg/phantom"
	"tvdenoise/pkg/tv"
)

// totalVariation2D sums the forward-difference gradient magnitude, matching
// the TV term the optimizer minimizes.
func totalVariation2D(img *models.Image2D) float64 {
	sum := 0.0
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var gx, gy float64
			if x < img.Width-1 {
				gx = img.At(x+1, y) - img.At(x, y)
			}
			if y < img.Height-1 {
				gy = img.At(x, y+1) - img.At(x, y)
			}
			sum += math.Sqrt(gx*gx + gy*gy)
		}
	}
	return sum
}

func mse(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum / float64(len(a))
}

func noisyCheckerboard(t *testing.T, seed uint64) *models.Image2D {
	t.Helper()
	img, ok := phantom.AddGaussianNoise(phantom.Checkerboard(32, 32, 8), 0.3, seed).(*models.Image2D)
	require.True(t, ok)
	return img
}

func TestDenoiseRejectsInvalidOptions(t *testing.T) {
	img := phantom.Checkerboard(8, 8, 4)

	cases := []struct {
		name   string
		mutate func(*tv.Options)
	}{
		{"ZeroWeight", func(o *tv.Options) { o.Weight = 0 }},
		{"NegativeWeight", func(o *tv.Options) { o.Weight = -5 }},
		{"ZeroEps", func(o *tv.Options) { o.Eps = 0 }},
		{"NegativeEps", func(o *tv.Options) { o.Eps = -1e-3 }},
		{"ZeroMaxIterations", func(o *tv.Options) { o.MaxIterations = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tv.DefaultOptions()
			tc.mutate(&opts)
			_, err := tv.Denoise2D(context.Background(), img, opts)
			require.ErrorIs(t, err, tv.ErrInvalidParameter)
		})
	}
}

func TestDenoiseRejectsUnsupportedRank(t *testing.T) {
	_, err := models.NewImage(make([]float64, 9), 9)
	require.ErrorIs(t, err, models.ErrUnsupportedDimensionality)

	_, err = models.NewImage(make([]float64, 16), 2, 2, 2, 2)
	require.ErrorIs(t, err, models.ErrUnsupportedDimensionality)

	_, err = tv.Denoise(context.Background(), nil, tv.DefaultOptions())
	require.ErrorIs(t, err, models.ErrUnsupportedDimensionality)
}

func TestDenoiseIdempotent(t *testing.T) {
	noisy := noisyCheckerboard(t, 11)

	for _, workers := range []int{1, 4} {
		opts := tv.DefaultOptions()
		opts.MaxIterations = 40
		opts.Workers = workers

		first, err := tv.Denoise2D(context.Background(), noisy, opts)
		require.NoError(t, err)
		second, err := tv.Denoise2D(context.Background(), noisy, opts)
		require.NoError(t, err)

		require.Equal(t, first.Data, second.Data, "workers=%d", workers)
	}
}

func TestDenoiseLeavesInputUntouched(t *testing.T) {
	noisy := noisyCheckerboard(t, 13)
	before := make([]float64, len(noisy.Data))
	copy(before, noisy.Data)

	_, err := tv.Denoise2D(context.Background(), noisy, tv.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, before, noisy.Data)
}

func TestDenoiseReducesTotalVariation(t *testing.T) {
	noisy := noisyCheckerboard(t, 17)
	tvIn := totalVariation2D(noisy)

	run := func(weight float64) *models.Image2D {
		opts := tv.DefaultOptions()
		opts.Weight = weight
		opts.Eps = 1e-12
		opts.MaxIterations = 30
		out, err := tv.Denoise2D(context.Background(), noisy, opts)
		require.NoError(t, err)
		return out
	}

	gentle := run(10)
	strong := run(60)

	assert.Less(t, totalVariation2D(gentle), tvIn)
	assert.Less(t, totalVariation2D(strong), totalVariation2D(gentle))
}

func TestDenoiseEnergyNonIncreasing(t *testing.T) {
	noisy := noisyCheckerboard(t, 19)

	var energies []float64
	opts := tv.DefaultOptions()
	opts.Weight = 30
	opts.MaxIterations = 100
	opts.OnIteration = func(_ int, energy float64) {
		energies = append(energies, energy)
	}

	_, err := tv.Denoise2D(context.Background(), noisy, opts)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(energies), 2)

	slack := 1e-3 * energies[0]
	for i := 1; i < len(energies); i++ {
		assert.LessOrEqual(t, energies[i], energies[i-1]+slack,
			"energy rose at iteration %d", i)
	}
	assert.Less(t, energies[len(energies)-1], energies[0])
}

func TestDenoiseStopsWithinTwoIterationsOnLooseTolerance(t *testing.T) {
	noisy := noisyCheckerboard(t, 23)

	iterations := 0
	opts := tv.DefaultOptions()
	opts.Eps = 0.5
	opts.OnIteration = func(int, float64) { iterations++ }

	_, err := tv.Denoise2D(context.Background(), noisy, opts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, iterations, 1)
	assert.LessOrEqual(t, iterations, 2)
}

func TestDenoiseRunsToCapOnMachineEpsilon(t *testing.T) {
	noisy := noisyCheckerboard(t, 29)

	iterations := 0
	opts := tv.DefaultOptions()
	opts.Eps = math.Nextafter(1, 2) - 1
	opts.MaxIterations = 5
	opts.OnIteration = func(int, float64) { iterations++ }

	_, err := tv.Denoise2D(context.Background(), noisy, opts)
	require.NoError(t, err)
	assert.Equal(t, 5, iterations)
}

func TestDenoiseSingleIterationReturnsInput(t *testing.T) {
	noisy := noisyCheckerboard(t, 31)

	opts := tv.DefaultOptions()
	opts.MaxIterations = 1

	out, err := tv.Denoise2D(context.Background(), noisy, opts)
	require.NoError(t, err)

	// The first reconstruction happens before any dual update has
	// accumulated, so the estimate equals the input.
	require.Equal(t, noisy.Data, out.Data)
}

func TestDenoiseTwoIterationStencil(t *testing.T) {
	img := &models.Image2D{Data: []float64{1, 0, 0, 0}, Width: 2, Height: 2}

	opts := tv.Options{Weight: 2, Eps: 1e-12, MaxIterations: 2, Workers: 1}
	out, err := tv.Denoise2D(context.Background(), img, opts)
	require.NoError(t, err)

	// After iteration 0 both duals at the bright corner hold
	// step / (sqrt(2)*(0.5/weight) + 1); iteration 1 spreads them through
	// the divergence stencil.
	p := 0.25 / (math.Sqrt2*0.25 + 1)
	want := []float64{1 - 2*p, p, p, 0}
	assert.InDeltaSlice(t, want, out.Data, 1e-15)
}

func TestDenoiseOnePixelImage(t *testing.T) {
	img := &models.Image2D{Data: []float64{0.4}, Width: 1, Height: 1}

	iterations := 0
	opts := tv.DefaultOptions()
	opts.MaxIterations = 3
	opts.OnIteration = func(int, float64) { iterations++ }

	out, err := tv.Denoise2D(context.Background(), img, opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4}, out.Data)
	assert.Equal(t, 3, iterations)
}

func TestDenoiseDispatchMatchesVariants(t *testing.T) {
	opts := tv.DefaultOptions()
	opts.MaxIterations = 10
	opts.Workers = 2

	img := noisyCheckerboard(t, 37)
	direct, err := tv.Denoise2D(context.Background(), img, opts)
	require.NoError(t, err)
	routed, err := tv.Denoise(context.Background(), img, opts)
	require.NoError(t, err)
	require.Equal(t, direct.Data, routed.(*models.Image2D).Data)

	vol := phantom.AddGaussianNoise(phantom.Sphere(12, 12, 12, 6, 6, 6, 4), 0.1, 41).(*models.Image3D)
	direct3, err := tv.Denoise3D(context.Background(), vol, opts)
	require.NoError(t, err)
	routed3, err := tv.Denoise(context.Background(), vol, opts)
	require.NoError(t, err)
	require.Equal(t, direct3.Data, routed3.(*models.Image3D).Data)
}

func TestDenoiseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tv.Denoise2D(ctx, noisyCheckerboard(t, 43), tv.DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDenoiseVolumeLowersSphereError(t *testing.T) {
	clean := phantom.Sphere(40, 40, 40, 22, 20, 17, 8)
	noisy, ok := phantom.AddGaussianNoise(clean, 0.2, 3).(*models.Image3D)
	require.True(t, ok)

	opts := tv.DefaultOptions()
	opts.Weight = 100

	out, err := tv.Denoise3D(context.Background(), noisy, opts)
	require.NoError(t, err)

	noisyErr := mse(noisy.Data, clean.Data)
	denoisedErr := mse(out.Data, clean.Data)
	assert.Less(t, denoisedErr, noisyErr)
}
