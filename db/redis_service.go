package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"exam-server-go/config"
	"exam-server-go/models"
)

const (
	sessionPrefix    = "session:"     // String prefix: session:{id} -> JSON SessionUser
	reportLockPrefix = "report:lock:" // String prefix: report:lock:{attemptId} -> holder token
)

// ErrLocked is returned when another holder owns a lock.
var ErrLocked = errors.New("locked")

// SessionStore keeps logged-in identities server-side.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.SessionUser, error)
	Save(ctx context.Context, id string, user *models.SessionUser) error
	Delete(ctx context.Context, id string) error
}

// Locker guards work that must not run twice at once.
type Locker interface {
	// Acquire takes the lock for key and returns its release function, or
	// ErrLocked while someone else holds it.
	Acquire(ctx context.Context, key string) (func(), error)
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

func getSessionKey(id string) string {
	return sessionPrefix + id
}

func getReportLockKey(attemptID string) string {
	return reportLockPrefix + attemptID
}

// RedisService handles session and lock operations against Redis.
type RedisService struct {
	Client  *redis.Client
	TTL     time.Duration
	LockTTL time.Duration
	Logger  *zap.Logger
}

// NewRedisService creates a new RedisService instance.
func NewRedisService(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisService{
		Client:  client,
		TTL:     ttl,
		LockTTL: 2 * time.Minute,
		Logger:  logger,
	}
}

// --- Session Operations ---

// Get returns the session identity, or nil when the session is unknown or
// expired.
func (s *RedisService) Get(ctx context.Context, id string) (*models.SessionUser, error) {
	data, err := s.Client.Get(ctx, getSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	var user models.SessionUser
	if err := json.Unmarshal(data, &user); err != nil {
		s.Logger.Warn("Dropping unreadable session", zap.Error(err))
		_ = s.Client.Del(ctx, getSessionKey(id)).Err()
		return nil, nil
	}
	return &user, nil
}

// Save stores the identity and restarts the session TTL.
func (s *RedisService) Save(ctx context.Context, id string, user *models.SessionUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.Client.Set(ctx, getSessionKey(id), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return nil
}

func (s *RedisService) Delete(ctx context.Context, id string) error {
	if err := s.Client.Del(ctx, getSessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

// ClearSessions removes every stored session and returns how many were
// dropped.
func (s *RedisService) ClearSessions(ctx context.Context) (int, error) {
	var cleared int
	iter := s.Client.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	pipe := s.Client.Pipeline()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		cleared++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	if cleared == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}
	return cleared, nil
}

// --- Report Locks ---

// Acquire takes report:lock:{key} with SETNX. The release only deletes the
// key while it still carries this holder's token.
func (s *RedisService) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := getReportLockKey(key)
	token := uuid.NewString()
	ok, err := s.Client.SetNX(ctx, lockKey, token, s.LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", lockKey, ErrLocked)
	}
	release := func() {
		// Background context: the request may already be cancelled.
		bg := context.Background()
		err := s.Client.Watch(bg, func(tx *redis.Tx) error {
			held, err := tx.Get(bg, lockKey).Result()
			if err != nil || held != token {
				return err
			}
			_, err = tx.TxPipelined(bg, func(pipe redis.Pipeliner) error {
				pipe.Del(bg, lockKey)
				return nil
			})
			return err
		}, lockKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			s.Logger.Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
		}
	}
	return release, nil
}

// --- Utility ---

// InitializeRedisClient creates and tests a Redis client connection.
func InitializeRedisClient(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Info("Successfully connected to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return rdb, nil
}
