package service

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// OpenCV COLORMAP_VIRIDIS，gocv 未导出该常量
const colormapViridis gocv.ColormapTypes = 16

// VertexColors 将深度归一化后经 viridis 色图映射为逐顶点 RGBA
func VertexColors(depth *DepthField) ([][4]uint8, error) {
	if depth == nil || len(depth.Values) == 0 {
		return nil, processingError(StageColor, errors.New("depth field is empty"))
	}
	w, h := depth.Width, depth.Height
	if len(depth.Values) != w*h {
		return nil, processingError(StageColor,
			fmt.Errorf("depth field has %d values, expected %d", len(depth.Values), w*h))
	}

	lo, hi := floats.Min(depth.Values), floats.Max(depth.Values)
	span := hi - lo

	levels := make([]byte, len(depth.Values))
	if span > minDepthRange {
		for i, v := range depth.Values {
			levels[i] = uint8((v - lo) / span * 255)
		}
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, levels)
	if err != nil {
		return nil, processingError(StageColor, fmt.Errorf("build level matrix: %w", err))
	}
	defer src.Close()

	mapped := gocv.NewMat()
	defer mapped.Close()
	gocv.ApplyColorMap(src, &mapped, colormapViridis)

	bgr := mapped.ToBytes()
	if len(bgr) != 3*len(levels) {
		return nil, processingError(StageColor,
			fmt.Errorf("colormap produced %d bytes, expected %d", len(bgr), 3*len(levels)))
	}

	colors := make([][4]uint8, len(levels))
	for i := range colors {
		colors[i] = [4]uint8{bgr[3*i+2], bgr[3*i+1], bgr[3*i], 255}
	}
	return colors, nil
}
