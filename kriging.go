package kriging

import (
	"fmt"
	"math"
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/flywave/go-kriging-gpu/internal/logging"
)

const maxLags = 30

// Kriging is an ordinary kriging estimator over a batch of samples. Each
// position holds x, y and the observed value. After Train the fitted
// parameters and the weight vector M are immutable.
type Kriging struct {
	pos []vec3d.T

	Model  ModelType `json:"model"`
	Nugget float64   `json:"nugget"`
	Range  float64   `json:"range"`
	Sill   float64   `json:"sill"`
	A      float64   `json:"A"`
	N      int       `json:"n"`

	// K is the inverted covariance matrix, M the weight vector K·t.
	K []float64 `json:"K"`
	M []float64 `json:"M"`

	model KrigingModel
}

func New(pos []vec3d.T) *Kriging {
	return &Kriging{pos: pos}
}

// NewFromArrays builds an estimator from parallel value and coordinate slices.
func NewFromArrays(t, xs, ys []float64) (*Kriging, error) {
	if len(t) != len(xs) || len(t) != len(ys) {
		return nil, fmt.Errorf("%w: %d values, %d xs, %d ys", ErrInvalidParameter, len(t), len(xs), len(ys))
	}
	pos := make([]vec3d.T, len(t))
	for i := range t {
		pos[i] = vec3d.T{xs[i], ys[i], t[i]}
	}
	return New(pos), nil
}

type KrigingModel func(h, nugget, range_, sill, A float64) float64

func krigingGaussian(h, nugget, range_, sill, A float64) float64 {
	x := -(1.0 / A) * ((h / range_) * (h / range_))
	return nugget + ((sill-nugget)/range_)*
		(1.0-exp(x))
}

func krigingExponential(h, nugget, range_, sill, A float64) float64 {
	x := -(1.0 / A) * (h / range_)
	return nugget + ((sill-nugget)/range_)*
		(1.0-exp(x))
}

func krigingSpherical(h, nugget, range_, sill, A float64) float64 {
	if h > range_ {
		return nugget + (sill-nugget)/range_
	}
	x := h / range_
	return nugget + ((sill-nugget)/range_)*
		(1.5*(x)-0.5*(pow3(x)))
}

// ModelFunc returns the closed-form variogram function of a model.
func ModelFunc(model ModelType) (KrigingModel, error) {
	switch model {
	case Gaussian:
		return krigingGaussian, nil
	case Exponential:
		return krigingExponential, nil
	case Spherical:
		return krigingSpherical, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
}

// modelBasis is the regression column for a lag distance scaled by range.
func modelBasis(model ModelType, h, A float64) float64 {
	switch model {
	case Gaussian:
		return 1.0 - exp(-(1.0/A)*pow2(h))
	case Exponential:
		return 1.0 - exp(-(1.0/A)*h)
	default:
		return 1.5*h - 0.5*pow3(h)
	}
}

func (kri *Kriging) validate(model ModelType, sigma2, alpha float64) error {
	n := len(kri.pos)
	if n < 2 {
		return fmt.Errorf("%w: got %d", ErrNotEnoughSamples, n)
	}
	if n > MaxSamples {
		return fmt.Errorf("%w: %d > %d", ErrTooManySamples, n, MaxSamples)
	}
	if !model.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if !finite(alpha) || alpha <= 0 {
		return fmt.Errorf("%w: alpha must be positive, got %v", ErrInvalidParameter, alpha)
	}
	if !finite(sigma2) || sigma2 < 0 {
		return fmt.Errorf("%w: sigma2 must be non-negative, got %v", ErrInvalidParameter, sigma2)
	}
	for i := range kri.pos {
		if !finite(kri.pos[i][0]) || !finite(kri.pos[i][1]) || !finite(kri.pos[i][2]) {
			return fmt.Errorf("%w: sample %d is not finite", ErrInvalidParameter, i)
		}
	}
	return nil
}

// Train fits the variogram model to the samples and precomputes the weight
// vector used by Predict. sigma2 is the nugget-variance prior added to the
// covariance diagonal and alpha the ridge strength of the variogram regression.
func (kri *Kriging) Train(model ModelType, sigma2 float64, alpha float64) (*Kriging, error) {
	if err := kri.validate(model, sigma2, alpha); err != nil {
		return nil, err
	}
	log := logging.WithComponent("trainer")

	kri.Model = model
	kri.Nugget = 0.0
	kri.Range = 0.0
	kri.Sill = 0.0
	kri.A = float64(1) / float64(3)
	kri.N = 0
	kri.K = nil
	kri.M = nil
	kri.model, _ = ModelFunc(model)

	n := len(kri.pos)
	pairs := (n*n - n) / 2

	distance := make(DistanceList, 0, pairs)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			distance = append(distance, [2]float64{
				math.Sqrt(pow2(kri.pos[i][0]-kri.pos[j][0]) + pow2(kri.pos[i][1]-kri.pos[j][1])),
				math.Abs(kri.pos[i][2] - kri.pos[j][2]),
			})
		}
	}
	sort.Sort(distance)

	maxDistance := distance[pairs-1][0]
	if maxDistance == 0 {
		return nil, fmt.Errorf("%w: all samples are coincident", ErrInvalidParameter)
	}

	lag, semi := binLags(distance, maxDistance)
	l := len(lag)
	if l < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughLags, l)
	}

	// range is the largest lag distance itself, not its span from lag[0]
	kri.Range = lag[l-1]

	X := make([]float64, 2*l)
	Y := make([]float64, l)
	for i := 0; i < l; i++ {
		X[i*2] = 1
		X[i*2+1] = modelBasis(model, lag[i]/kri.Range, kri.A)
		Y[i] = semi[i]
	}

	Xt := matrixTranspose(X, l, 2)
	Z := matrixMultiply(Xt, X, 2, l, 2)
	Z = matrixAdd(Z, matrixDiag(1/alpha, 2), 2, 2)
	Z, how, err := matrixInvert(Z, 2)
	if err != nil {
		return nil, fmt.Errorf("variogram regression: %w", err)
	}
	log.WithField("solver", how).Debug("regression matrix inverted")

	W := matrixMultiply(matrixMultiply(Z, Xt, 2, 2, l), Y, 2, l, 1)
	kri.Nugget = W[0]
	kri.Sill = W[1]*kri.Range + kri.Nugget

	K := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			K[i*n+j] = kri.model(
				math.Sqrt(pow2(kri.pos[i][0]-kri.pos[j][0])+pow2(kri.pos[i][1]-kri.pos[j][1])),
				kri.Nugget,
				kri.Range,
				kri.Sill,
				kri.A)
			K[j*n+i] = K[i*n+j]
		}
		K[i*n+i] = kri.model(0, kri.Nugget,
			kri.Range,
			kri.Sill,
			kri.A)
	}

	C := matrixAdd(K, matrixDiag(sigma2, n), n, n)
	C, how, err = matrixInvert(C, n)
	if err != nil {
		return nil, fmt.Errorf("covariance matrix: %w", err)
	}
	if how != solverCholesky {
		log.WithField("solver", how).Warn("covariance matrix is not positive-definite, used fallback solver")
	}

	t := make([]float64, n)
	for i := range kri.pos {
		t[i] = kri.pos[i][2]
	}

	kri.K = C
	kri.M = matrixMultiply(C, t, n, n, 1)
	kri.N = n

	log.WithFields(logrus.Fields{
		"model":  model,
		"n":      n,
		"lags":   l,
		"nugget": kri.Nugget,
		"range":  kri.Range,
		"sill":   kri.Sill,
	}).Info("variogram trained")

	return kri, nil
}

// binLags aggregates sorted pair distances into at most maxLags lags. With
// no more pairs than lags each pair is its own lag; otherwise pairs are
// averaged into equal-width distance buckets and empty buckets are skipped.
func binLags(distance DistanceList, maxDistance float64) (lag, semi []float64) {
	pairs := len(distance)
	if pairs <= maxLags {
		lag = make([]float64, pairs)
		semi = make([]float64, pairs)
		for i := range distance {
			lag[i] = distance[i][0]
			semi[i] = distance[i][1]
		}
		return lag, semi
	}

	tolerance := maxDistance / float64(maxLags)
	lag = make([]float64, 0, maxLags)
	semi = make([]float64, 0, maxLags)

	j := 0
	for i := 0; i < maxLags && j < pairs; i++ {
		var sumLag, sumSemi float64
		k := 0
		last := i == maxLags-1
		for j < pairs && (last || distance[j][0] <= float64(i+1)*tolerance) {
			sumLag += distance[j][0]
			sumSemi += distance[j][1]
			j++
			k++
		}
		if k > 0 {
			lag = append(lag, sumLag/float64(k))
			semi = append(semi, sumSemi/float64(k))
		}
	}
	return lag, semi
}

// Predict estimates the value at (x, y).
func (kri *Kriging) Predict(x, y float64) float64 {
	k := make([]float64, kri.N)
	for i := 0; i < kri.N; i++ {
		k[i] = kri.model(
			distance(x, y, kri.pos[i][0], kri.pos[i][1]),
			kri.Nugget, kri.Range,
			kri.Sill, kri.A,
		)
	}
	return floats.Dot(k, kri.M)
}

// Trained reports whether Train completed successfully.
func (kri *Kriging) Trained() bool {
	return kri.N > 0 && len(kri.M) == kri.N && kri.model != nil
}

// Positions returns the sample positions the model was built from.
func (kri *Kriging) Positions() []vec3d.T {
	return kri.pos
}

// Params returns nugget, range, sill and A in that order.
func (kri *Kriging) Params() [4]float64 {
	return [4]float64{kri.Nugget, kri.Range, kri.Sill, kri.A}
}
