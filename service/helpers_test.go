package service

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/TIANLI0/MeshKit/config"
	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// checkerboard 2x2 个色块组成的棋盘格，每个色块 cell 像素
func checkerboard(size, cell int, a, b color.Color) *image.NRGBA {
	img := imaging.New(size, size, a)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 1 {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

func toMat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	mat, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mat.Close() })
	return mat
}

func saveImage(t *testing.T, img image.Image, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	outputDir := t.TempDir()
	cfg := &config.PipelineConfig{
		OutputDir:     outputDir,
		MaxConcurrent: 2,
		QueueTimeout:  5,
	}
	return NewPipeline(cfg, NewMetrics("test", prometheus.NewRegistry())), outputDir
}
