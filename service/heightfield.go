package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DepthScale 深度到 z 轴的放大倍数
	DepthScale   = 10.0
	smoothLambda = 0.5
	minFaceArea  = 1e-12
)

// Face 三角形的三个顶点索引
type Face [3]uint32

// Mesh 规则网格高度场
type Mesh struct {
	Width    int
	Height   int
	Vertices []mgl64.Vec3
	Faces    []Face
	Colors   [][4]uint8
}

// BuildHeightField 每个像素生成一个顶点 (x, y, depth*scale)，每个网格单元拆成两个三角形
func BuildHeightField(depth *DepthField, scale float64) (*Mesh, error) {
	if depth == nil {
		return nil, processingError(StageMesh, errors.New("depth field is nil"))
	}
	w, h := depth.Width, depth.Height
	if w <= 0 || h <= 0 {
		return nil, processingError(StageMesh, fmt.Errorf("invalid depth field size %dx%d", w, h))
	}
	if len(depth.Values) != w*h {
		return nil, processingError(StageMesh,
			fmt.Errorf("depth field has %d values, expected %d", len(depth.Values), w*h))
	}
	if uint64(w)*uint64(h) > math.MaxUint32 {
		return nil, processingError(StageMesh, fmt.Errorf("grid %dx%d exceeds 32-bit indices", w, h))
	}

	vertices := make([]mgl64.Vec3, w*h)
	for i := 0; i < h; i++ {
		row := i * w
		for j := 0; j < w; j++ {
			vertices[row+j] = mgl64.Vec3{float64(j), float64(i), depth.Values[row+j] * scale}
		}
	}

	return &Mesh{
		Width:    w,
		Height:   h,
		Vertices: vertices,
		Faces:    gridFaces(w, h),
	}, nil
}

// gridFaces 直接按单元编号计算索引：
// A = {左上, 右上, 左下}，B = {右上, 右下, 左下}
func gridFaces(w, h int) []Face {
	if w < 2 || h < 2 {
		return []Face{}
	}
	cols := w - 1
	cells := cols * (h - 1)
	faces := make([]Face, 2*cells)
	for c := 0; c < cells; c++ {
		i, j := c/cols, c%cols
		v0 := uint32(i*w + j)
		v1 := v0 + 1
		v2 := v0 + uint32(w)
		v3 := v2 + 1
		faces[2*c] = Face{v0, v1, v2}
		faces[2*c+1] = Face{v1, v3, v2}
	}
	return faces
}

// Clean 删除退化和重复的三角形，返回删除数量。顶点保持不变。
func (m *Mesh) Clean() int {
	seen := make(map[Face]struct{}, len(m.Faces))
	kept := m.Faces[:0]
	for _, f := range m.Faces {
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		if m.faceArea(f) < minFaceArea {
			continue
		}
		key := sortedFace(f)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, f)
	}
	removed := len(m.Faces) - len(kept)
	m.Faces = kept
	return removed
}

// Validate 检查索引范围和颜色缓冲长度
func (m *Mesh) Validate() error {
	n := uint32(len(m.Vertices))
	for i, f := range m.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			return fmt.Errorf("face %d references vertex outside [0,%d)", i, n)
		}
	}
	if m.Colors != nil && len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("%d vertex colors for %d vertices", len(m.Colors), len(m.Vertices))
	}
	return nil
}

// Smooth 单次拉普拉斯平滑：v' = v + lambda*(邻居均值 - v)
// 所有新位置都基于平滑前的坐标计算，结果与遍历顺序无关。
func (m *Mesh) Smooth(lambda float64) {
	neighbors := m.adjacency()
	smoothed := make([]mgl64.Vec3, len(m.Vertices))
	for i, v := range m.Vertices {
		adj := neighbors[i]
		if len(adj) == 0 {
			smoothed[i] = v
			continue
		}
		var sum mgl64.Vec3
		for _, n := range adj {
			sum = sum.Add(m.Vertices[n])
		}
		mean := sum.Mul(1 / float64(len(adj)))
		smoothed[i] = v.Add(mean.Sub(v).Mul(lambda))
	}
	m.Vertices = smoothed
}

// adjacency 由三角形边构建的去重邻接表
func (m *Mesh) adjacency() [][]uint32 {
	neighbors := make([][]uint32, len(m.Vertices))
	link := func(a, b uint32) {
		for _, n := range neighbors[a] {
			if n == b {
				return
			}
		}
		neighbors[a] = append(neighbors[a], b)
	}
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			link(a, b)
			link(b, a)
		}
	}
	return neighbors
}

func (m *Mesh) faceArea(f Face) float64 {
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	return b.Sub(a).Cross(c.Sub(a)).Len() / 2
}

func sortedFace(f Face) Face {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}
