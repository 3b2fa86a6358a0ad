package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TIANLI0/MeshKit/config"
	"github.com/TIANLI0/MeshKit/model"
	"github.com/TIANLI0/MeshKit/service"
	"github.com/TIANLI0/MeshKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const glbContentType = "model/gltf-binary"

// nginx 约定的非标准状态码：客户端在响应前断开
const statusClientClosedRequest = 499

// MeshProcessor 图像到网格的处理流程
type MeshProcessor interface {
	Process(ctx context.Context, imagePath string) (*model.MeshResult, error)
}

// MeshCache 按图像 MD5 缓存网格结果
type MeshCache interface {
	GetMeshResult(ctx context.Context, md5 string) (*model.MeshResult, error)
	SetMeshResult(ctx context.Context, md5 string, result *model.MeshResult) error
	DeleteMeshResult(ctx context.Context, md5 string) error
}

type ProcessHandler struct {
	cfg       *config.Config
	cache     MeshCache
	processor MeshProcessor
	metrics   *service.Metrics
}

func NewProcessHandler(cfg *config.Config, cache MeshCache, processor MeshProcessor, metrics *service.Metrics) *ProcessHandler {
	return &ProcessHandler{
		cfg:       cfg,
		cache:     cache,
		processor: processor,
		metrics:   metrics,
	}
}

// Process 处理图片上传并返回 GLB 网格
func (h *ProcessHandler) Process(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "please upload an image file",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "empty file",
		})
		return
	}
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("file exceeds size limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "unsupported file type",
		})
		return
	}

	// 请求唯一的文件名，避免并发请求互相覆盖
	ext := filepath.Ext(file.Filename)
	savePath := filepath.Join(h.cfg.Upload.UploadDir, utils.GenerateID()+ext)

	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to save file",
			Error:   err.Error(),
		})
		return
	}

	if h.cfg.Pipeline.CleanupTempFiles {
		defer func() {
			if err := os.Remove(savePath); err != nil {
				utils.Logger.Warn("failed to delete temp file",
					zap.String("file", savePath),
					zap.Error(err))
			} else {
				utils.Logger.Debug("temp file deleted",
					zap.String("file", savePath))
			}
		}()
	}

	md5, err := utils.FileMD5(savePath)
	if err != nil {
		utils.Logger.Error("failed to calculate md5", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "failed to hash file",
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	ctx := c.Request.Context()

	if cached := h.lookup(ctx, md5); cached != nil {
		utils.Logger.Info("cache hit", zap.String("md5", md5))
		h.serveMesh(c, cached)
		return
	}

	result, err := h.processor.Process(ctx, savePath)
	if err != nil {
		utils.Logger.Error("failed to process image",
			zap.String("md5", md5),
			zap.String("stage", service.StageOf(err)),
			zap.Error(err))
		c.JSON(statusFor(err), model.ErrorResponse{
			Success: false,
			Message: "image processing failed",
			Stage:   service.StageOf(err),
			Error:   err.Error(),
		})
		return
	}
	result.MD5 = md5

	if err := h.cache.SetMeshResult(ctx, md5, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}

	h.serveMesh(c, result)
}

// GetByMD5 根据MD5获取网格元数据
func (h *ProcessHandler) GetByMD5(c *gin.Context) {
	result, ok := h.cachedResult(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, model.MeshResponse{
		Success: true,
		Message: "ok",
		Data:    result,
	})
}

// DownloadByMD5 根据MD5下载 GLB 文件
func (h *ProcessHandler) DownloadByMD5(c *gin.Context) {
	result, ok := h.cachedResult(c)
	if !ok {
		return
	}

	if _, err := os.Stat(result.Path); err != nil {
		_ = h.cache.DeleteMeshResult(c.Request.Context(), result.MD5)
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "mesh file no longer available",
		})
		return
	}

	h.serveMesh(c, result)
}

func (h *ProcessHandler) cachedResult(c *gin.Context) (*model.MeshResult, bool) {
	md5 := c.Param("md5")
	if md5 == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "missing md5 parameter",
		})
		return nil, false
	}

	result, err := h.cache.GetMeshResult(c.Request.Context(), md5)
	if err != nil {
		utils.Logger.Error("failed to get mesh result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "query failed",
			Error:   err.Error(),
		})
		return nil, false
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "no mesh found for this image",
		})
		return nil, false
	}

	return result, true
}

// lookup 命中缓存且文件仍存在时返回结果，文件已被清理则删除缓存项
func (h *ProcessHandler) lookup(ctx context.Context, md5 string) *model.MeshResult {
	cached, err := h.cache.GetMeshResult(ctx, md5)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		h.metrics.RecordCacheError()
		return nil
	}
	if cached == nil {
		h.metrics.RecordCache(false)
		return nil
	}
	if _, err := os.Stat(cached.Path); err != nil {
		h.metrics.RecordCache(false)
		if err := h.cache.DeleteMeshResult(ctx, md5); err != nil {
			utils.Logger.Warn("failed to delete stale cache entry", zap.Error(err))
		}
		return nil
	}
	h.metrics.RecordCache(true)
	return cached
}

func (h *ProcessHandler) serveMesh(c *gin.Context, result *model.MeshResult) {
	c.Header("Content-Type", glbContentType)
	c.Header("X-Mesh-MD5", result.MD5)
	c.Header("X-Mesh-Vertices", strconv.Itoa(result.VertexCount))
	c.Header("X-Mesh-Faces", strconv.Itoa(result.FaceCount))
	c.Header("X-Mesh-Contours", strconv.Itoa(result.ContourCount))
	c.FileAttachment(result.Path, result.MD5+".glb")
}

func (h *ProcessHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

// statusFor 将流水线错误分类映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case service.StageOf(err) == service.StageQueue:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
