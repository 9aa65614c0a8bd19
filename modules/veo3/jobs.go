package veo3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"media-studio-server/modules/common/model"
	redisutil "media-studio-server/modules/common/redis"
)

const (
	videoQueueKey  = "jobs:video"
	videoJobPrefix = "video_job:"
	videoJobTTL    = 24 * time.Hour
)

// ErrJobNotFound - unknown or expired job ID
var ErrJobNotFound = errors.New("job not found")

// JobQueue - storage and hand-off of async video jobs
type JobQueue interface {
	Enqueue(ctx context.Context, imagePath, prompt string) (*VideoJob, error)
	Get(ctx context.Context, jobID string) (*VideoJob, error)
	Save(ctx context.Context, job *VideoJob) error
	// Next blocks until a job ID is available or ctx is done.
	Next(ctx context.Context) (string, error)
	Len(ctx context.Context) (int64, error)
	// Cancel raises the cancel flag; the worker stops the job at its next check.
	Cancel(ctx context.Context, jobID string) error
	IsJobCancelled(ctx context.Context, jobID string) bool
}

// RedisJobQueue - job records under video_job:<id>, IDs on the jobs:video list
type RedisJobQueue struct {
	rdb *redis.Client
}

func NewRedisJobQueue(rdb *redis.Client) *RedisJobQueue {
	return &RedisJobQueue{rdb: rdb}
}

func jobKey(jobID string) string {
	return videoJobPrefix + jobID
}

func newJob(imagePath, prompt string) *VideoJob {
	now := time.Now().Format(time.RFC3339)
	return &VideoJob{
		JobID:     uuid.New().String(),
		ImagePath: imagePath,
		Prompt:    prompt,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, imagePath, prompt string) (*VideoJob, error) {
	job := newJob(imagePath, prompt)
	if err := q.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.rdb.LPush(ctx, videoQueueKey, job.JobID).Err(); err != nil {
		return nil, fmt.Errorf("redis LPUSH failed: %w", err)
	}
	return job, nil
}

func (q *RedisJobQueue) Get(ctx context.Context, jobID string) (*VideoJob, error) {
	data, err := q.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}
	var job VideoJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("corrupt job record %s: %w", jobID, err)
	}
	return &job, nil
}

func (q *RedisJobQueue) Save(ctx context.Context, job *VideoJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.Set(ctx, jobKey(job.JobID), data, videoJobTTL).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (q *RedisJobQueue) Next(ctx context.Context) (string, error) {
	// result[0] is the list name, result[1] the job ID
	result, err := q.rdb.BRPop(ctx, 0, videoQueueKey).Result()
	if err != nil {
		return "", err
	}
	return result[1], nil
}

func (q *RedisJobQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, videoQueueKey).Result()
}

func (q *RedisJobQueue) Cancel(ctx context.Context, jobID string) error {
	if err := redisutil.SetJobCancelled(ctx, q.rdb, jobID); err != nil {
		return fmt.Errorf("redis SET cancel flag failed: %w", err)
	}
	return nil
}

func (q *RedisJobQueue) IsJobCancelled(ctx context.Context, jobID string) bool {
	return redisutil.IsJobCancelled(ctx, q.rdb, jobID)
}
