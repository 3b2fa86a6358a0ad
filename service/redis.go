package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/MeshKit/config"
	"github.com/TIANLI0/MeshKit/model"
	"github.com/TIANLI0/MeshKit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const meshKeyPrefix = "mesh:"

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetMeshResult 从缓存获取网格结果，未命中返回 nil, nil
func (s *RedisService) GetMeshResult(ctx context.Context, md5 string) (*model.MeshResult, error) {
	data, err := s.client.Get(ctx, meshKeyPrefix+md5).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result model.MeshResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal mesh result",
			zap.String("md5", md5), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetMeshResult 设置网格结果到缓存
func (s *RedisService) SetMeshResult(ctx context.Context, md5 string, result *model.MeshResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, meshKeyPrefix+md5, data, s.ttl).Err()
}

// DeleteMeshResult 删除失效的缓存项（例如网格文件已被清理）
func (s *RedisService) DeleteMeshResult(ctx context.Context, md5 string) error {
	return s.client.Del(ctx, meshKeyPrefix+md5).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
