package service

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Canny 阈值，轮廓提取与深度估计共用
const (
	cannyLow  float32 = 100
	cannyHigh float32 = 200
)

// Contour 闭合轮廓的顶点序列
type Contour []image.Point

// RegionColor 轮廓内部的平均颜色
type RegionColor struct {
	R, G, B float64
}

// Extract 提取图像的外部轮廓以及每个轮廓内的平均颜色
func Extract(img gocv.Mat) ([]Contour, []RegionColor, error) {
	if img.Empty() {
		return nil, nil, inputError(StageExtract, errEmptyImage)
	}

	f := newFrame(img)
	defer f.Close()
	return f.extract()
}

func (f *frame) extract() ([]Contour, []RegionColor, error) {
	found := externalContours(f.edges)
	defer found.Close()

	if found.Size() == 0 {
		return nil, nil, inputError(StageExtract, errNoContours)
	}

	contours := make([]Contour, 0, found.Size())
	for _, pts := range found.ToPoints() {
		contours = append(contours, Contour(pts))
	}

	return contours, regionColors(f.img, found), nil
}

// externalContours 只保留最外层轮廓，直线段上的中间点被压缩
func externalContours(binary gocv.Mat) gocv.PointsVector {
	return gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
}

// regionColors 为每个轮廓绘制填充掩码并计算掩码内的平均颜色
func regionColors(img gocv.Mat, contours gocv.PointsVector) []RegionColor {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colors := make([]RegionColor, 0, contours.Size())

	for i := 0; i < contours.Size(); i++ {
		mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8U)
		gocv.DrawContours(&mask, contours, i, white, -1)

		// Mat 按 BGR 存储
		mean := img.MeanWithMask(mask)
		mask.Close()

		colors = append(colors, RegionColor{R: mean.Val3, G: mean.Val2, B: mean.Val1})
	}

	return colors
}

// Bounds 轮廓的外接矩形
func (c Contour) Bounds() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0].Add(image.Pt(1, 1))}
	for _, p := range c[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}
