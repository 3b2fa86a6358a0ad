package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/TIANLI0/MeshKit/config"
	"github.com/TIANLI0/MeshKit/model"
	"github.com/TIANLI0/MeshKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/semaphore"
)

// Pipeline 负责图像到网格的整体流程。自身只持有运行参数，不保存任何请求数据。
type Pipeline struct {
	outputDir    string
	sem          *semaphore.Weighted
	queueTimeout time.Duration
	maxDimension int
	metrics      *Metrics
}

// 未配置排队超时时的默认值
const defaultQueueTimeout = 30 * time.Second

func NewPipeline(cfg *config.PipelineConfig, metrics *Metrics) *Pipeline {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	queueTimeout := time.Duration(cfg.QueueTimeout) * time.Second
	if queueTimeout <= 0 {
		queueTimeout = defaultQueueTimeout
	}
	return &Pipeline{
		outputDir:    cfg.OutputDir,
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
		queueTimeout: queueTimeout,
		maxDimension: cfg.MaxDimension,
		metrics:      metrics,
	}
}

// Process 加载图像 -> 提取轮廓 -> 估计深度 -> 构建网格 -> 导出 GLB
func (p *Pipeline) Process(ctx context.Context, imagePath string) (*model.MeshResult, error) {
	result, err := p.process(ctx, imagePath)
	if err != nil {
		var pe *PipelineError
		if errors.As(err, &pe) {
			p.metrics.RecordResult(string(pe.Kind), pe.Stage)
		} else {
			p.metrics.RecordResult(string(KindProcessing), "")
		}
		return nil, err
	}
	p.metrics.RecordResult("success", "")
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, imagePath string) (*model.MeshResult, error) {
	// 并发控制
	qctx, cancel := context.WithTimeout(ctx, p.queueTimeout)
	defer cancel()
	if err := p.sem.Acquire(qctx, 1); err != nil {
		// 调用方取消与排队超时分开上报
		if ctx.Err() != nil {
			return nil, processingError(StageQueue, fmt.Errorf("request cancelled while queued: %w", ctx.Err()))
		}
		return nil, processingError(StageQueue, fmt.Errorf("%w: %v", errQueueTimeout, err))
	}
	defer p.sem.Release(1)

	startTime := time.Now()

	stageStart := time.Now()
	img, err := LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	p.metrics.ObserveStage(StageLoad, stageStart)

	originalWidth, originalHeight := img.Cols(), img.Rows()
	scaledImg, scale := smartResize(img, p.maxDimension)
	defer scaledImg.Close()

	utils.Logger.Info("processing image",
		zap.String("path", imagePath),
		zap.Int("width", originalWidth),
		zap.Int("height", originalHeight),
		zap.Float64("scale", scale))

	// 灰度图和边缘图只计算一次
	f := newFrame(scaledImg)
	defer f.Close()
	stats := f.stats()

	stageStart = time.Now()
	contours, colors, err := f.extract()
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(StageExtract, stageStart)
	utils.Logger.Debug("contours extracted",
		zap.String("stage", StageExtract),
		zap.Int("contours", len(contours)),
		zap.Duration("duration", time.Since(stageStart)))

	stageStart = time.Now()
	depth, err := f.depth()
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(StageDepth, stageStart)
	utils.Logger.Debug("depth estimated",
		zap.String("stage", StageDepth),
		zap.Bool("degenerate", depth.Degenerate),
		zap.Duration("duration", time.Since(stageStart)))

	stageStart = time.Now()
	mesh, err := BuildMesh(contours, depth, colors)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(StageMesh, stageStart)
	p.metrics.ObserveMesh(len(mesh.Vertices))

	stageStart = time.Now()
	outputPath := filepath.Join(p.outputDir, utils.GenerateID()+".glb")
	if err := WriteGLB(mesh, outputPath); err != nil {
		return nil, err
	}
	p.metrics.ObserveStage(StageExport, stageStart)

	result := &model.MeshResult{
		Width:        depth.Width,
		Height:       depth.Height,
		VertexCount:  len(mesh.Vertices),
		FaceCount:    len(mesh.Faces),
		ContourCount: len(contours),
		Regions:      regions(contours, colors),
		Stats:        stats,
		Path:         outputPath,
		Timestamp:    time.Now().Unix(),
	}

	utils.Logger.Info("mesh generated successfully",
		zap.String("path", outputPath),
		zap.Int("vertices", result.VertexCount),
		zap.Int("faces", result.FaceCount),
		zap.Int("contours", result.ContourCount),
		zap.Duration("duration", time.Since(startTime)))

	return result, nil
}

// LoadImage 读取三通道彩色图像，无法解码时返回输入错误
func LoadImage(imagePath string) (gocv.Mat, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return gocv.Mat{}, inputError(StageLoad, fmt.Errorf("stat %s: %w", imagePath, err))
	}
	if info.IsDir() || info.Size() == 0 {
		return gocv.Mat{}, inputError(StageLoad, fmt.Errorf("%s: %w", imagePath, errEmptyImage))
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, inputError(StageLoad, fmt.Errorf("%s: %w", imagePath, errEmptyImage))
	}
	return img, nil
}

// smartResize 超过 maxSize 时按比例缩小，maxSize <= 0 表示不缩放
func smartResize(img gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}

func regions(contours []Contour, colors []RegionColor) []model.Region {
	out := make([]model.Region, len(contours))
	for i, c := range contours {
		b := c.Bounds()
		out[i] = model.Region{
			ID:     i + 1,
			Points: len(c),
			BoundingBox: model.BBox{
				X:      b.Min.X,
				Y:      b.Min.Y,
				Width:  b.Dx(),
				Height: b.Dy(),
			},
			Color: [3]float64{colors[i].R, colors[i].G, colors[i].B},
		}
	}
	return out
}
