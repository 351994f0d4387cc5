package kriging

import "errors"

var (
	ErrNoSamples        = errors.New("kriging: no samples")
	ErrNotEnoughSamples = errors.New("kriging: at least 2 samples are required")
	ErrTooManySamples   = errors.New("kriging: too many samples")
	ErrNotEnoughLags    = errors.New("kriging: fewer than 2 non-empty lags")
	ErrSingularMatrix   = errors.New("kriging: matrix is singular")
	ErrUnknownModel     = errors.New("kriging: unknown variogram model")
	ErrInvalidParameter = errors.New("kriging: invalid parameter")
	ErrInvalidGrid      = errors.New("kriging: invalid grid")
	ErrNotTrained       = errors.New("kriging: model is not trained")
)
