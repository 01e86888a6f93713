package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher is notified after every checkpoint written to disk
type Publisher interface {
	Publish(ctx context.Context, experiment string, c *Checkpoint, file string) error
}

// Notice is the message announced on the checkpoint channel
type Notice struct {
	Experiment string `json:"experiment"`
	RunID      string `json:"run_id"`
	BatchCount int    `json:"batch_count"`
	File       string `json:"file"`
	WrittenAt  int64  `json:"written_at_ms"`
}

// RedisPublisher mirrors the latest checkpoint into redis and announces it on a channel,
// so trainers can pick up new snapshots without polling the filesystem
type RedisPublisher struct {
	client *redis.Client
	runID  string
}

func NewRedisPublisher(addr, runID string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 2 * time.Second,
		}),
		runID: runID,
	}
}

var _ Publisher = &RedisPublisher{}

func LatestKey(experiment string) string {
	return experiment + ":latest"
}

func Channel(experiment string) string {
	return experiment + ":checkpoints"
}

func (p *RedisPublisher) Publish(ctx context.Context, experiment string, c *Checkpoint, file string) error {
	bs, err := json.Marshal(c)
	if err != nil {
		return err
	}
	notice, err := json.Marshal(Notice{
		Experiment: experiment,
		RunID:      p.runID,
		BatchCount: c.BatchCount,
		File:       file,
		WrittenAt:  time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, LatestKey(experiment), bs, 0)
	pipe.Publish(ctx, Channel(experiment), notice)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
