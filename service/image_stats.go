package service

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"

	"github.com/TIANLI0/MeshKit/model"
)

// AnalyzeImage 统计输入图像的边缘密度和 Lab 颜色方差，仅用于结果元数据
func AnalyzeImage(img gocv.Mat) model.ImageStats {
	if img.Empty() {
		return model.ImageStats{}
	}
	f := newFrame(img)
	defer f.Close()
	return f.stats()
}

// stats 复用 frame 中的边缘图，边缘密度 = 边缘像素 / 总像素
func (f *frame) stats() model.ImageStats {
	total := f.img.Rows() * f.img.Cols()
	return model.ImageStats{
		EdgeDensity:   float64(gocv.CountNonZero(f.edges)) / float64(total),
		ColorVariance: f.labSpread(),
	}
}

// labSpread Lab 三个通道标准差的平均值，单通道图像为 0
func (f *frame) labSpread() float64 {
	if f.img.Channels() != 3 {
		return 0
	}

	lab := gocv.NewMat()
	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer lab.Close()
	defer mean.Close()
	defer stddev.Close()

	gocv.CvtColor(f.img, &lab, gocv.ColorBGRToLab)
	gocv.MeanStdDev(lab, &mean, &stddev)

	spread, err := matFloat64s(stddev)
	if err != nil || len(spread) == 0 {
		return 0
	}
	return floats.Sum(spread) / float64(len(spread))
}
