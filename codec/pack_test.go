package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackRoundTrip(t *testing.T) {
	a := assert.New(t)

	values := []float64{0, 1, 0.5, 1.0 / 255, 254.0 / 255, 1.0 / 3, 2.0 / 3, 1e-9, 1 - 1e-9}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		values = append(values, r.Float64())
	}

	for _, v := range values {
		a.InDelta(v, UnpackRGBA(PackRGBA(v)), PackPrecision, "%v", v)
		a.InDelta(v, UnpackRGB(PackRGB(v)), 1.0/65025, "%v", v)
	}
}

func TestPackEnds(t *testing.T) {
	a := assert.New(t)

	a.Equal([4]uint8{0, 0, 0, 0}, PackRGBA(0))
	a.Equal([4]uint8{255, 0, 0, 0}, PackRGBA(1))
	a.Equal(1.0, UnpackRGBA([4]uint8{255, 0, 0, 0}))
}

func TestNormalize(t *testing.T) {
	a := assert.New(t)

	a.Equal(0.5, Normalize(15, 10, 20))
	a.Equal(0.0, Normalize(5, 10, 20))
	a.Equal(1.0, Normalize(25, 10, 20))
	a.Equal(0.0, Normalize(5, 10, 10))
	a.Equal(15.0, Denormalize(0.5, 10, 20))

	v := 13.37
	b := PackRGB(Normalize(v, 10, 20))
	a.InDelta(v, UnpackValue(b[0], b[1], b[2], 10, 20), 10.0/65025)
}

func TestPackNormalizedFloat32(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		v := float32(r.Float64())
		enc := PackNormalizedFloat32(v)
		var b [3]uint8
		for c := range b {
			b[c] = toByte(float64(enc[c]))
		}
		assert.InDelta(t, float64(v), UnpackRGB(b), 1e-6)
	}
	assert.Equal(t, [4]float32{1, 0, 0, 0}, PackNormalizedFloat32(1))
}
