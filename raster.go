package kriging

import (
	"fmt"
	"math"

	"github.com/flywave/go-kriging-gpu/internal/logging"
)

// Raster evaluates the model at every cell centre of g. The result holds
// g.Len() values stored top-down: index 0 is the north-west cell.
func (kri *Kriging) Raster(g Grid) ([]float32, error) {
	if !kri.Trained() {
		return nil, ErrNotTrained
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	out := make([]float32, g.Len())
	for r := 0; r < g.Rows; r++ {
		cursor := g.Index(0, r)
		for c := 0; c < g.Cols; c++ {
			x, y := g.CellCenter(c, r)
			out[cursor+c] = float32(kri.Predict(x, y))
		}
	}

	logging.WithComponent("predictor").WithField("grid", g.String()).Debug("raster generated")
	return out, nil
}

// Contour samples the bounding box of the training samples with xWidth by
// yWidth nodes, both ends included. Values are stored bottom-up, x fastest.
func (kri *Kriging) Contour(xWidth, yWidth int) (*ContourRectangle, error) {
	if !kri.Trained() {
		return nil, ErrNotTrained
	}
	if xWidth < 1 || yWidth < 1 {
		return nil, fmt.Errorf("%w: contour size %dx%d", ErrInvalidGrid, xWidth, yWidth)
	}

	rect := &ContourRectangle{
		Contour: make([]float64, xWidth*yWidth),
		XWidth:  xWidth,
		YWidth:  yWidth,
		Xlim:    [2]float64{math.Inf(1), math.Inf(-1)},
		Ylim:    [2]float64{math.Inf(1), math.Inf(-1)},
		Zlim:    [2]float64{math.Inf(1), math.Inf(-1)},
	}
	for _, p := range kri.pos {
		rect.Xlim[0] = math.Min(rect.Xlim[0], p[0])
		rect.Xlim[1] = math.Max(rect.Xlim[1], p[0])
		rect.Ylim[0] = math.Min(rect.Ylim[0], p[1])
		rect.Ylim[1] = math.Max(rect.Ylim[1], p[1])
	}
	if xWidth > 1 {
		rect.XResolution = (rect.Xlim[1] - rect.Xlim[0]) / float64(xWidth-1)
	}
	if yWidth > 1 {
		rect.YResolution = (rect.Ylim[1] - rect.Ylim[0]) / float64(yWidth-1)
	}

	for j := 0; j < yWidth; j++ {
		y := rect.Ylim[0] + float64(j)*rect.YResolution
		for i := 0; i < xWidth; i++ {
			v := kri.Predict(rect.Xlim[0]+float64(i)*rect.XResolution, y)
			rect.Contour[j*xWidth+i] = v
			rect.Zlim[0] = math.Min(rect.Zlim[0], v)
			rect.Zlim[1] = math.Max(rect.Zlim[1], v)
		}
	}
	return rect, nil
}
