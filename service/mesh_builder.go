package service

import (
	"fmt"
)

// BuildMesh 由深度图生成经过清理、单次平滑和着色的网格。
// 轮廓和区域颜色只做一致性校验，不参与几何构建。
func BuildMesh(contours []Contour, depth *DepthField, colors []RegionColor) (*Mesh, error) {
	if len(contours) != len(colors) {
		return nil, processingError(StageMesh,
			fmt.Errorf("%d region colors for %d contours", len(colors), len(contours)))
	}

	mesh, err := BuildHeightField(depth, DepthScale)
	if err != nil {
		return nil, err
	}

	mesh.Clean()
	if err := mesh.Validate(); err != nil {
		return nil, processingError(StageMesh, err)
	}
	mesh.Smooth(smoothLambda)

	vertexColors, err := VertexColors(depth)
	if err != nil {
		return nil, err
	}
	mesh.Colors = vertexColors
	if err := mesh.Validate(); err != nil {
		return nil, processingError(StageColor, err)
	}

	return mesh, nil
}
