package service

import (
	"errors"
	"fmt"
)

// ErrorKind 流水线错误分类
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindProcessing ErrorKind = "processing"
	KindOutput     ErrorKind = "output"
)

// 阶段名称
const (
	StageLoad    = "load"
	StageExtract = "extract"
	StageDepth   = "depth"
	StageMesh    = "mesh"
	StageColor   = "color"
	StageExport  = "export"
	StageQueue   = "queue"
)

// 可用 errors.Is 匹配的哨兵错误
var (
	ErrInput      = &PipelineError{Kind: KindInput}
	ErrProcessing = &PipelineError{Kind: KindProcessing}
	ErrOutput     = &PipelineError{Kind: KindOutput}
)

var (
	errNoContours   = errors.New("no contours found in image")
	errEmptyImage   = errors.New("image is empty or could not be decoded")
	errQueueTimeout = errors.New("processing queue is full")
)

// PipelineError 带阶段标记的错误
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s error at %s stage: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is 按错误分类匹配
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

func inputError(stage string, err error) error {
	return &PipelineError{Kind: KindInput, Stage: stage, Err: err}
}

func processingError(stage string, err error) error {
	return &PipelineError{Kind: KindProcessing, Stage: stage, Err: err}
}

func outputError(stage string, err error) error {
	return &PipelineError{Kind: KindOutput, Stage: stage, Err: err}
}

// StageOf 返回错误所在阶段，非流水线错误返回空字符串
func StageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
