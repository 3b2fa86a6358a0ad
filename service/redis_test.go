package service

import (
	"context"
	"testing"
	"time"

	"github.com/TIANLI0/MeshKit/config"
	"github.com/TIANLI0/MeshKit/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisService) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc := NewRedisService(&config.RedisConfig{
		Addr: mr.Addr(),
		TTL:  time.Minute,
	})
	t.Cleanup(func() {
		_ = svc.Close()
		mr.Close()
	})
	return mr, svc
}

func TestRedisService_SetAndGet(t *testing.T) {
	mr, svc := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, svc.Ping(ctx))

	result := &model.MeshResult{
		MD5:          "abc",
		Width:        4,
		Height:       4,
		VertexCount:  16,
		FaceCount:    18,
		ContourCount: 1,
		Path:         "/tmp/x.glb",
	}
	require.NoError(t, svc.SetMeshResult(ctx, "abc", result))

	assert.True(t, mr.Exists("mesh:abc"))
	assert.Equal(t, time.Minute, mr.TTL("mesh:abc"))

	got, err := svc.GetMeshResult(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestRedisService_Miss(t *testing.T) {
	_, svc := setupTestRedis(t)

	got, err := svc.GetMeshResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisService_Delete(t *testing.T) {
	mr, svc := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, svc.SetMeshResult(ctx, "abc", &model.MeshResult{MD5: "abc"}))
	require.NoError(t, svc.DeleteMeshResult(ctx, "abc"))
	assert.False(t, mr.Exists("mesh:abc"))
}

func TestRedisService_CorruptEntry(t *testing.T) {
	mr, svc := setupTestRedis(t)
	require.NoError(t, mr.Set("mesh:bad", "{not json"))

	_, err := svc.GetMeshResult(context.Background(), "bad")
	assert.Error(t, err)
}
