package service

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzeImage(t *testing.T) {
	t.Run("solid", func(t *testing.T) {
		stats := AnalyzeImage(toMat(t, imaging.New(16, 16, color.NRGBA{R: 90, G: 140, B: 30, A: 255})))
		assert.Zero(t, stats.EdgeDensity)
		assert.Zero(t, stats.ColorVariance)
	})

	t.Run("checkerboard", func(t *testing.T) {
		stats := AnalyzeImage(toMat(t, checkerboard(32, 8, black, white)))
		assert.Greater(t, stats.EdgeDensity, 0.0)
		assert.LessOrEqual(t, stats.EdgeDensity, 1.0)
		assert.Greater(t, stats.ColorVariance, 0.0)
	})
}

func TestFrameSharedAcrossStages(t *testing.T) {
	img := toMat(t, checkerboard(32, 8, black, white))

	f := newFrame(img)
	defer f.Close()

	// 三个阶段读取同一份边缘图，结果与各自独立计算一致
	contours, colors, err := f.extract()
	assert.NoError(t, err)
	depth, err := f.depth()
	assert.NoError(t, err)
	stats := f.stats()

	c2, col2, err := Extract(img)
	assert.NoError(t, err)
	d2, err := EstimateDepth(img)
	assert.NoError(t, err)

	assert.Equal(t, c2, contours)
	assert.Equal(t, col2, colors)
	assert.Equal(t, d2.Values, depth.Values)
	assert.Equal(t, AnalyzeImage(img), stats)
}
