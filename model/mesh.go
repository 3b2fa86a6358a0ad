package model

// MeshResult 网格生成结果
type MeshResult struct {
	MD5          string     `json:"md5"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	VertexCount  int        `json:"vertex_count"`
	FaceCount    int        `json:"face_count"`
	ContourCount int        `json:"contour_count"`
	Regions      []Region   `json:"regions,omitempty"`
	Stats        ImageStats `json:"stats"`
	Path         string     `json:"path"`
	Timestamp    int64      `json:"timestamp"`
}

// Region 单个轮廓区域信息
type Region struct {
	ID          int        `json:"id"`
	Points      int        `json:"points"`
	BoundingBox BBox       `json:"bounding_box"`
	Color       [3]float64 `json:"color"` // RGB 均值
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ImageStats 输入图像的统计信息
type ImageStats struct {
	EdgeDensity   float64 `json:"edge_density"`
	ColorVariance float64 `json:"color_variance"`
}

// MeshResponse 查询响应
type MeshResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *MeshResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`
}
