package kriging

import (
	"fmt"
	"strings"
)

// MaxSamples is the largest sample batch a single model may be trained on.
// The GPU fragment program loops over at most this many texels.
const MaxSamples = 1024

type ModelType string

const (
	Gaussian    ModelType = "gaussian"
	Exponential ModelType = "exponential"
	Spherical   ModelType = "spherical"
)

// Code is the numeric selector the fragment program switches on.
func (m ModelType) Code() float32 {
	switch m {
	case Gaussian:
		return 1
	case Exponential:
		return 2
	case Spherical:
		return 3
	}
	return 0
}

func (m ModelType) Valid() bool {
	return m.Code() != 0
}

func ParseModelType(s string) (ModelType, error) {
	m := ModelType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return m, nil
}

type DistanceList [][2]float64

func (t DistanceList) Len() int {
	return len(t)
}

func (t DistanceList) Less(i, j int) bool {
	return t[i][0] < t[j][0]
}

func (t DistanceList) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
}

type ContourRectangle struct {
	Contour     []float64  `json:"contour"`
	XWidth      int        `json:"xWidth"`
	YWidth      int        `json:"yWidth"`
	Xlim        [2]float64 `json:"xLim"`
	Ylim        [2]float64 `json:"yLim"`
	Zlim        [2]float64 `json:"zLim"`
	XResolution float64    `json:"xResolution"`
	YResolution float64    `json:"yResolution"`
}
