package service

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

const (
	residualSigma  = 3.0
	depthBlurSize  = 5
	depthContrast  = 0.5
	degenerateFill = 0.5
	minDepthRange  = 1e-12
)

// DepthField 按行优先存储的逐像素深度，取值范围 [0,1]
type DepthField struct {
	Width  int
	Height int
	Values []float64
	// Degenerate 表示输入没有任何结构信号，Values 为统一的回退值
	Degenerate bool
}

func (d *DepthField) At(x, y int) float64 {
	return d.Values[y*d.Width+x]
}

// EstimateDepth 融合边缘、高频残差和梯度幅值三种线索生成深度图
func EstimateDepth(img gocv.Mat) (*DepthField, error) {
	if img.Empty() {
		return nil, inputError(StageDepth, errEmptyImage)
	}

	f := newFrame(img)
	defer f.Close()
	return f.depth()
}

func (f *frame) depth() (*DepthField, error) {
	width, height := f.img.Cols(), f.img.Rows()
	gray := f.gray

	// 1. 边缘
	edgesF := gocv.NewMat()
	defer edgesF.Close()
	f.edges.ConvertTo(&edgesF, gocv.MatTypeCV64F)

	// 2. 模糊残差
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{}, residualSigma, 0, gocv.BorderDefault)

	residual := gocv.NewMat()
	defer residual.Close()
	gocv.AbsDiff(gray, blurred, &residual)

	residualF := gocv.NewMat()
	defer residualF.Close()
	residual.ConvertTo(&residualF, gocv.MatTypeCV64F)

	// 3. 梯度幅值，使用 64 位浮点避免截断
	gradX := gocv.NewMat()
	gradY := gocv.NewMat()
	defer gradX.Close()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.Magnitude(gradX, gradY, &gradient)

	fused := gocv.NewMat()
	defer fused.Close()
	gocv.Add(edgesF, residualF, &fused)
	gocv.Add(fused, gradient, &fused)

	raw, err := matFloat64s(fused)
	if err != nil {
		return nil, processingError(StageDepth, err)
	}
	if len(raw) != width*height {
		return nil, processingError(StageDepth,
			fmt.Errorf("fused map has %d values, expected %dx%d", len(raw), width, height))
	}

	if floats.Max(raw)-floats.Min(raw) < minDepthRange {
		return uniformDepth(width, height), nil
	}

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(fused, &normalized, 0, 1, gocv.NormMinMax)

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.GaussianBlur(normalized, &smoothed, image.Pt(depthBlurSize, depthBlurSize), 0, 0, gocv.BorderDefault)
	gocv.Threshold(smoothed, &smoothed, 0, 0, gocv.ThresholdToZero)

	// 平方根压缩高值、拉伸低值
	shaped := gocv.NewMat()
	defer shaped.Close()
	gocv.Pow(smoothed, depthContrast, &shaped)

	values, err := matFloat64s(shaped)
	if err != nil {
		return nil, processingError(StageDepth, err)
	}

	depth := &DepthField{Width: width, Height: height, Values: values}
	if err := depth.validate(); err != nil {
		return nil, processingError(StageDepth, err)
	}
	return depth, nil
}

func uniformDepth(width, height int) *DepthField {
	values := make([]float64, width*height)
	for i := range values {
		values[i] = degenerateFill
	}
	return &DepthField{Width: width, Height: height, Values: values, Degenerate: true}
}

// validate 检查尺寸和有限性，并把浮点误差造成的越界夹回 [0,1]
func (d *DepthField) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid depth field size %dx%d", d.Width, d.Height)
	}
	if len(d.Values) != d.Width*d.Height {
		return fmt.Errorf("depth field has %d values, expected %d", len(d.Values), d.Width*d.Height)
	}
	for i, v := range d.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite depth at index %d", i)
		}
		d.Values[i] = math.Min(1, math.Max(0, v))
	}
	return nil
}

// matFloat64s 复制单通道 CV_64F 矩阵的数据
func matFloat64s(m gocv.Mat) ([]float64, error) {
	if m.Type() != gocv.MatTypeCV64F {
		return nil, errors.New("expected a single channel float64 matrix")
	}
	data, err := m.DataPtrFloat64()
	if err != nil {
		return nil, fmt.Errorf("read matrix data: %w", err)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}
