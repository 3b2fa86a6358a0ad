package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", outputError(StageExport, cause))

	assert.True(t, errors.Is(err, ErrOutput))
	assert.False(t, errors.Is(err, ErrInput))
	assert.False(t, errors.Is(err, ErrProcessing))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &PipelineError{Kind: KindOutput, Stage: StageExport}))
	assert.False(t, errors.Is(err, &PipelineError{Kind: KindOutput, Stage: StageLoad}))

	assert.Equal(t, StageExport, StageOf(err))
	assert.Equal(t, "", StageOf(cause))
	assert.Equal(t, "output error at export stage: boom", outputError(StageExport, cause).Error())
}
