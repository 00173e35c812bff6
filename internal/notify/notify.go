// Package notify publishes terminal job events to external listeners.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vision-gateway/internal/types"
	"vision-gateway/log"
)

const DefaultListKey = "visiongw:jobs:finished"

type Notifier interface {
	JobFinished(ctx context.Context, job *types.Job) error
	Close() error
}

// Event is the JSON payload pushed for every terminal job.
type Event struct {
	JobID      string    `json:"job_id"`
	Task       string    `json:"task"`
	Model      string    `json:"model"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Artifacts  []string  `json:"artifacts"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMs int64     `json:"duration_ms"`
}

func EventFromJob(job *types.Job) Event {
	ev := Event{
		JobID:      job.ID,
		Task:       string(job.Task),
		Model:      string(job.Model),
		Status:     job.Status.String(),
		Error:      job.Error,
		Artifacts:  append([]string{}, job.Artifacts...),
		DurationMs: job.Duration().Milliseconds(),
	}
	if job.FinishedAt != nil {
		ev.FinishedAt = *job.FinishedAt
	}
	return ev
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ListKey  string
}

// RedisNotifier appends events to a Redis list with RPUSH.
type RedisNotifier struct {
	client  *redis.Client
	listKey string
}

func NewRedisNotifier(cfg RedisConfig) *RedisNotifier {
	if cfg.ListKey == "" {
		cfg.ListKey = DefaultListKey
	}
	return &RedisNotifier{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		listKey: cfg.ListKey,
	}
}

func (n *RedisNotifier) JobFinished(ctx context.Context, job *types.Job) error {
	payload, err := json.Marshal(EventFromJob(job))
	if err != nil {
		return err
	}
	if err := n.client.RPush(ctx, n.listKey, payload).Err(); err != nil {
		log.GetLogger().Warn("[Notifier] redis push failed",
			zap.String("job_id", job.ID), zap.String("key", n.listKey), zap.Error(err))
		return err
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) JobFinished(context.Context, *types.Job) error { return nil }
func (Nop) Close() error                                  { return nil }
