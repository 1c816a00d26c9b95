// Package tv implements total-variation denoising of 2D and 3D scalar images
// using Chambolle's dual-projection fixed-point algorithm.
//
// The optimizer maintains one dual field per spatial axis and repeats three
// steps until the energy stabilizes: reconstruct the primal estimate from the
// dual divergence, evaluate the TV objective, and descend plus project the
// dual fields. Edges survive because the TV term penalizes total gradient
// magnitude rather than its square.
package tv

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"tvdenoise/internal/models"
)

// ErrInvalidParameter is returned when an option fails validation before any
// iteration work starts.
var ErrInvalidParameter = errors.New("tv: invalid parameter")

// Options controls the optimizer.
type Options struct {
	// Weight is the denoising strength. Larger values produce smoother
	// results at the cost of fidelity to the input.
	Weight float64

	// Eps is the relative convergence tolerance. The loop stops once the
	// energy change between iterations drops below Eps times the initial
	// energy.
	Eps float64

	// MaxIterations caps the iteration count. Hitting the cap is not an
	// error; the best estimate reached is returned.
	MaxIterations int

	// Workers is the number of goroutines used inside each iteration step.
	// Zero or negative selects runtime.NumCPU. The iteration sequence itself
	// is always serial.
	Workers int

	// OnIteration, when non-nil, is called once per iteration with the
	// iteration index and the energy just computed.
	OnIteration func(iteration int, energy float64)

	// Logger, when non-nil, receives one debug event per iteration.
	Logger *zerolog.Logger
}

// DefaultOptions returns the standard optimizer settings.
func DefaultOptions() Options {
	return Options{
		Weight:        50.0,
		Eps:           2e-4,
		MaxIterations: 200,
		Workers:       runtime.NumCPU(),
	}
}

func (o Options) validate() error {
	if o.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %g", ErrInvalidParameter, o.Weight)
	}
	if o.Eps <= 0 {
		return fmt.Errorf("%w: eps must be positive, got %g", ErrInvalidParameter, o.Eps)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidParameter, o.MaxIterations)
	}
	return nil
}

func (o Options) workerCount(bands int) int {
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > bands {
		workers = bands
	}
	return workers
}

// Denoise routes the image to the optimizer variant matching its rank.
// The caller's buffer is never written; the result is a fresh image of the
// same shape.
func Denoise(ctx context.Context, img models.Image, opts Options) (models.Image, error) {
	switch v := img.(type) {
	case *models.Image2D:
		return Denoise2D(ctx, v, opts)
	case *models.Image3D:
		return Denoise3D(ctx, v, opts)
	default:
		return nil, fmt.Errorf("%w: got %T", models.ErrUnsupportedDimensionality, img)
	}
}

func (o Options) logIteration(iteration int, energy float64) {
	if o.OnIteration != nil {
		o.OnIteration(iteration, energy)
	}
	if o.Logger != nil {
		o.Logger.Debug().
			Int("iteration", iteration).
			Float64("energy", energy).
			Msg("tv iteration")
	}
}
