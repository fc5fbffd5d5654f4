// api/db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Templates carry inline policy documents, so they are encrypted at rest in
// the cache like any other sensitive payload.
func CacheTemplate(ctx context.Context, template *model.Template) error {
	templateJSON, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	encryptedTemplate, err := encrypt(templateJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt template: %w", err)
	}

	key := fmt.Sprintf("template:%s", template.ResourceID())
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedTemplate), defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache template: %w", err)
	}

	logger.Debug("Template cached successfully", zap.String("template", template.ResourceID()))
	return nil
}

func GetCachedTemplate(ctx context.Context, name string) (*model.Template, error) {
	key := fmt.Sprintf("template:%s", name)
	encryptedTemplateStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Template not found in cache", zap.String("template", name))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get template from cache: %w", err)
	}

	encryptedTemplate, err := base64.StdEncoding.DecodeString(encryptedTemplateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}

	templateJSON, err := decrypt(encryptedTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt template: %w", err)
	}

	var template model.Template
	err = json.Unmarshal(templateJSON, &template)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}

	logger.Debug("Template retrieved from cache", zap.String("template", name))
	return &template, nil
}

func DeleteCachedTemplate(ctx context.Context, name string) error {
	key := fmt.Sprintf("template:%s", name)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete template from cache: %w", err)
	}
	logger.Debug("Template deleted from cache", zap.String("template", name))
	return nil
}

// CacheDirectories stores one pass's account directory snapshot so repeated
// report requests don't hammer the provider's identity APIs.
func CacheDirectories(ctx context.Context, directories []model.AccountDirectory) error {
	directoriesJSON, err := json.Marshal(directories)
	if err != nil {
		return fmt.Errorf("failed to marshal directories: %w", err)
	}

	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, "directories", directoriesJSON, defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache directories: %w", err)
	}

	logger.Debug("Account directories cached successfully", zap.Int("count", len(directories)))
	return nil
}

func GetCachedDirectories(ctx context.Context) ([]model.AccountDirectory, error) {
	directoriesJSON, err := RedisClient.Get(ctx, "directories").Result()
	if err == redis.Nil {
		logger.Debug("Account directories not found in cache")
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get directories from cache: %w", err)
	}

	var directories []model.AccountDirectory
	err = json.Unmarshal([]byte(directoriesJSON), &directories)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal directories: %w", err)
	}

	logger.Debug("Account directories retrieved from cache", zap.Int("count", len(directories)))
	return directories, nil
}

func DeleteCachedDirectories(ctx context.Context) error {
	err := RedisClient.Del(ctx, "directories").Err()
	if err != nil {
		return fmt.Errorf("failed to delete directories from cache: %w", err)
	}
	logger.Debug("Account directories deleted from cache")
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}

// LockResource guards a reconciliation pass so overlapping runs from
// multiple replicas don't double-apply changes.
func LockResource(ctx context.Context, resourceName string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resourceName)
	locked, err := RedisClient.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	logger.Debug("Lock acquisition attempt",
		zap.String("resource", resourceName),
		zap.Bool("locked", locked))
	return locked, nil
}

func UnlockResource(ctx context.Context, resourceName string) error {
	key := fmt.Sprintf("lock:%s", resourceName)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	logger.Debug("Lock released", zap.String("resource", resourceName))
	return nil
}
