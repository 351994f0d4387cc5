package kriging

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// voxelGrid averages samples falling into the same xy cell. The value
// channel is averaged but never used for binning.
type voxelGrid struct {
	LeafSize [2]float64
}

type voxel struct {
	sum   vec3d.T
	num   int
	index int
}

func newVoxelGrid(leafX, leafY float64) *voxelGrid {
	return &voxelGrid{LeafSize: [2]float64{leafX, leafY}}
}

func minMaxVec3(ra []vec3d.T) (vec3d.T, vec3d.T, error) {
	if len(ra) == 0 {
		return vec3d.T{}, vec3d.T{}, ErrNoSamples
	}
	lo, hi := ra[0], ra[0]
	for _, v := range ra[1:] {
		for j := range v {
			if v[j] < lo[j] {
				lo[j] = v[j]
			}
			if v[j] > hi[j] {
				hi[j] = v[j]
			}
		}
	}
	return lo, hi, nil
}

func mulFloat(vec *vec3d.T, v float64) *vec3d.T {
	vec[0] *= v
	vec[1] *= v
	vec[2] *= v
	return vec
}

func cells(extent, leaf float64) int {
	if leaf <= 0 {
		return 1
	}
	return int(extent/leaf) + 1
}

func (f *voxelGrid) Filter(pc []vec3d.T) ([]vec3d.T, error) {
	lo, hi, err := minMaxVec3(pc)
	if err != nil {
		return nil, err
	}

	xs, ys := cells(hi[0]-lo[0], f.LeafSize[0]), cells(hi[1]-lo[1], f.LeafSize[1])
	voxels := make([]voxel, xs*ys)

	for i := range pc {
		x, y := 0, 0
		if f.LeafSize[0] > 0 {
			x = int((pc[i][0] - lo[0]) / f.LeafSize[0])
		}
		if f.LeafSize[1] > 0 {
			y = int((pc[i][1] - lo[1]) / f.LeafSize[1])
		}
		v := &voxels[x+xs*y]
		if v.num == 0 {
			v.index = i
		}
		v.num++
		v.sum.Add(&pc[i])
	}

	newPc := make([]vec3d.T, 0, len(pc))
	for i := range voxels {
		v := &voxels[i]
		if n := v.num; n > 0 {
			if n > 1 {
				newPc = append(newPc, *mulFloat(&v.sum, 1.0/float64(n)))
			} else {
				newPc = append(newPc, pc[v.index])
			}
		}
	}

	return newPc, nil
}

// ThinSamples merges nearby samples until at most max remain. Samples
// sharing a cell of a regular xy grid are replaced by their mean; the grid
// is coarsened until the count fits. Input with max or fewer samples is
// returned unchanged.
func ThinSamples(pos []vec3d.T, max int) ([]vec3d.T, error) {
	if max < 2 {
		return nil, ErrNotEnoughSamples
	}
	if len(pos) <= max {
		return pos, nil
	}
	lo, hi, err := minMaxVec3(pos)
	if err != nil {
		return nil, err
	}
	w, h := hi[0]-lo[0], hi[1]-lo[1]

	side := math.Ceil(math.Sqrt(float64(max)))
	for side >= 1 {
		out, err := newVoxelGrid(w/side, h/side).Filter(pos)
		if err != nil {
			return nil, err
		}
		if len(out) <= max {
			return out, nil
		}
		side--
	}
	return nil, ErrTooManySamples
}
