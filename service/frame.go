package service

import (
	"gocv.io/x/gocv"
)

// frame 单次请求内共享的灰度图和 Canny 边缘图，供轮廓、深度和统计三处复用
type frame struct {
	img   gocv.Mat
	gray  gocv.Mat
	edges gocv.Mat
}

// newFrame 调用方保证 img 非空，并负责 Close
func newFrame(img gocv.Mat) *frame {
	f := &frame{
		img:   img,
		gray:  gocv.NewMat(),
		edges: gocv.NewMat(),
	}
	if img.Channels() == 1 {
		img.CopyTo(&f.gray)
	} else {
		gocv.CvtColor(img, &f.gray, gocv.ColorBGRToGray)
	}
	gocv.Canny(f.gray, &f.edges, cannyLow, cannyHigh)
	return f
}

// Close 只释放 frame 自己创建的矩阵，img 归调用方所有
func (f *frame) Close() {
	_ = f.gray.Close()
	_ = f.edges.Close()
}
