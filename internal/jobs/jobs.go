/*******************************************************************************
* Copyright (C) 2026 the Eclipse BaSyx Authors and Fraunhofer IESE
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

// Package jobs is a small Redis-backed work queue for long-running tasks
// (AASX import, full federation resync). Jobs live as hashes under
// titan:jobs:job:<id>; their ids travel through the pending, processing and
// dead-letter lists. Claiming moves an id atomically from pending to
// processing with BLMOVE, so a crashed worker leaves its job visible on the
// processing list instead of losing it.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDead      = "dead"
	StatusCancelled = "cancelled"
)

// Queue keys.
const (
	PendingList    = "titan:jobs:pending"
	ProcessingList = "titan:jobs:processing"
	DeadLetterList = "titan:jobs:dlq"
	jobKeyPrefix   = "titan:jobs:job:"
)

// Defaults.
const (
	DefaultMaxRetries = 3
	DefaultJobTTL     = 24 * time.Hour
	DefaultResultTTL  = time.Hour
)

// Job is one unit of queued work. Priority above zero jumps the pending
// queue.
type Job struct {
	ID          string          `json:"jobId"`
	Task        string          `json:"task"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"maxRetries"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	StartedAt   string          `json:"startedAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// Queue is the Redis-backed job queue.
type Queue struct {
	rdb       *redis.Client
	jobTTL    time.Duration
	resultTTL time.Duration
}

// NewQueue builds a queue; zero TTLs take the defaults.
func NewQueue(rdb *redis.Client, jobTTL, resultTTL time.Duration) *Queue {
	if jobTTL <= 0 {
		jobTTL = DefaultJobTTL
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &Queue{rdb: rdb, jobTTL: jobTTL, resultTTL: resultTTL}
}

func jobKey(id string) string { return jobKeyPrefix + id }

// Submit enqueues a new job and returns it in pending state. Priority above
// zero enqueues at the claim end of the pending list.
func (q *Queue) Submit(ctx context.Context, task string, payload json.RawMessage, priority, maxRetries int) (Job, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := common.GetCurrentTimestamp()
	job := Job{
		ID:         uuid.NewString(),
		Task:       task,
		Payload:    payload,
		Status:     StatusPending,
		Priority:   priority,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := q.writeJob(ctx, job, q.jobTTL); err != nil {
		return Job{}, err
	}
	if err := q.enqueuePending(ctx, job); err != nil {
		return Job{}, common.NewErrUnavailable(fmt.Sprintf("failed to enqueue job: %s", err))
	}
	return job, nil
}

// enqueuePending places an id on the pending list. Claim pops the right end,
// so priority jobs RPUSH past the waiting FIFO tail.
func (q *Queue) enqueuePending(ctx context.Context, job Job) error {
	if job.Priority > 0 {
		return q.rdb.RPush(ctx, PendingList, job.ID).Err()
	}
	return q.rdb.LPush(ctx, PendingList, job.ID).Err()
}

// Get loads one job by id.
func (q *Queue) Get(ctx context.Context, id string) (Job, error) {
	fields, err := q.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return Job{}, common.NewErrUnavailable(fmt.Sprintf("failed to load job: %s", err))
	}
	if len(fields) == 0 {
		return Job{}, common.NewErrNotFound(fmt.Sprintf("no job with id %q", id))
	}
	return jobFromFields(fields), nil
}

// Claim blocks up to timeout for a pending job, moves its id onto the
// processing list and marks it running. The bool reports whether a job was
// claimed.
func (q *Queue) Claim(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	id, err := q.rdb.BLMove(ctx, PendingList, ProcessingList, "RIGHT", "LEFT", timeout).Result()
	if err == redis.Nil {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, common.NewErrUnavailable(fmt.Sprintf("failed to claim job: %s", err))
	}
	job, err := q.Get(ctx, id)
	if err != nil {
		// the hash expired under the list entry; drop the orphan
		q.rdb.LRem(ctx, ProcessingList, 1, id)
		return Job{}, false, err
	}
	if job.Status == StatusCancelled {
		q.rdb.LRem(ctx, ProcessingList, 1, id)
		return Job{}, false, nil
	}
	job.Status = StatusRunning
	job.Attempts++
	job.UpdatedAt = common.GetCurrentTimestamp()
	job.StartedAt = job.UpdatedAt
	if err := q.writeJob(ctx, job, q.jobTTL); err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

// Complete marks a job done, stores its result and removes it from the
// processing list. The finished record lingers for the result TTL.
func (q *Queue) Complete(ctx context.Context, id string, result json.RawMessage) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	job.Status = StatusCompleted
	job.Result = result
	job.Error = ""
	job.UpdatedAt = common.GetCurrentTimestamp()
	job.CompletedAt = job.UpdatedAt
	if err := q.writeJob(ctx, job, q.resultTTL); err != nil {
		return err
	}
	q.rdb.LRem(ctx, ProcessingList, 1, id)
	return nil
}

// Fail records a failed attempt. Jobs with retries left go back on the
// pending list; exhausted jobs move to the dead-letter list.
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	q.rdb.LRem(ctx, ProcessingList, 1, id)
	job.Error = reason
	job.UpdatedAt = common.GetCurrentTimestamp()
	if job.Attempts < job.MaxRetries {
		job.Status = StatusPending
		if err := q.writeJob(ctx, job, q.jobTTL); err != nil {
			return err
		}
		log.Printf("JOBS-RETRY %s attempt %d/%d: %s", id, job.Attempts, job.MaxRetries, reason)
		return q.enqueuePending(ctx, job)
	}
	job.Status = StatusDead
	if err := q.writeJob(ctx, job, q.jobTTL); err != nil {
		return err
	}
	log.Printf("JOBS-DEAD %s after %d attempts: %s", id, job.Attempts, reason)
	return q.rdb.LPush(ctx, DeadLetterList, id).Err()
}

// Cancel withdraws a pending or running job. Completed, dead or already
// cancelled jobs are rejected.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return common.NewErrConflict(fmt.Sprintf("job %q is %s and cannot be cancelled", id, job.Status)).WithCode("Job.NotCancellable")
	}
	job.Status = StatusCancelled
	job.UpdatedAt = common.GetCurrentTimestamp()
	if err := q.writeJob(ctx, job, q.resultTTL); err != nil {
		return err
	}
	q.rdb.LRem(ctx, PendingList, 1, id)
	q.rdb.LRem(ctx, ProcessingList, 1, id)
	return nil
}

// DeadLetters lists the ids parked on the dead-letter list.
func (q *Queue) DeadLetters(ctx context.Context) ([]string, error) {
	ids, err := q.rdb.LRange(ctx, DeadLetterList, 0, -1).Result()
	if err != nil {
		return nil, common.NewErrUnavailable(fmt.Sprintf("failed to list dead letters: %s", err))
	}
	return ids, nil
}

func (q *Queue) writeJob(ctx context.Context, job Job, ttl time.Duration) error {
	fields := map[string]any{
		"id":          job.ID,
		"task":        job.Task,
		"payload":     string(job.Payload),
		"status":      job.Status,
		"priority":    strconv.Itoa(job.Priority),
		"attempts":    strconv.Itoa(job.Attempts),
		"maxRetries":  strconv.Itoa(job.MaxRetries),
		"error":       job.Error,
		"result":      string(job.Result),
		"createdAt":   job.CreatedAt,
		"updatedAt":   job.UpdatedAt,
		"startedAt":   job.StartedAt,
		"completedAt": job.CompletedAt,
	}
	key := jobKey(job.ID)
	if err := q.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return common.NewErrUnavailable(fmt.Sprintf("failed to store job: %s", err))
	}
	if err := q.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return common.NewErrUnavailable(fmt.Sprintf("failed to expire job: %s", err))
	}
	return nil
}

func jobFromFields(fields map[string]string) Job {
	priority, _ := strconv.Atoi(fields["priority"])
	attempts, _ := strconv.Atoi(fields["attempts"])
	maxRetries, _ := strconv.Atoi(fields["maxRetries"])
	job := Job{
		ID:          fields["id"],
		Task:        fields["task"],
		Status:      fields["status"],
		Priority:    priority,
		Attempts:    attempts,
		MaxRetries:  maxRetries,
		Error:       fields["error"],
		CreatedAt:   fields["createdAt"],
		UpdatedAt:   fields["updatedAt"],
		StartedAt:   fields["startedAt"],
		CompletedAt: fields["completedAt"],
	}
	if p := fields["payload"]; p != "" {
		job.Payload = json.RawMessage(p)
	}
	if r := fields["result"]; r != "" {
		job.Result = json.RawMessage(r)
	}
	return job
}
