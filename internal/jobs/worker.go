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

package jobs

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// TaskFunc executes one claimed job. The returned document is stored as the
// job result; an error sends the job through the retry path.
type TaskFunc func(ctx context.Context, job Job) (json.RawMessage, error)

// Worker claims jobs in a loop and dispatches them by task name. Handlers
// are registered before Start; a claimed job without a handler fails
// immediately and retries once another instance registers it.
type Worker struct {
	queue        *Queue
	handlers     map[string]TaskFunc
	claimTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker builds a worker; a zero claim timeout blocks in one-second
// slices so shutdown stays responsive.
func NewWorker(queue *Queue, claimTimeout time.Duration) *Worker {
	if claimTimeout <= 0 {
		claimTimeout = time.Second
	}
	return &Worker{queue: queue, handlers: make(map[string]TaskFunc), claimTimeout: claimTimeout}
}

// Handle registers the executor for a task name. Not safe to call after
// Start.
func (w *Worker) Handle(task string, fn TaskFunc) {
	w.handlers[task] = fn
}

// Start launches the claim loop.
func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, ok, err := w.queue.Claim(ctx, w.claimTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("JOBS-CLAIM failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		w.execute(ctx, job)
	}
}

func (w *Worker) execute(ctx context.Context, job Job) {
	fn, found := w.handlers[job.Task]
	if !found {
		if err := w.queue.Fail(ctx, job.ID, "no handler registered for task "+job.Task); err != nil {
			log.Printf("JOBS-FAIL %s: %v", job.ID, err)
		}
		return
	}
	result, err := fn(ctx, job)
	if err != nil {
		if ferr := w.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Printf("JOBS-FAIL %s: %v", job.ID, ferr)
		}
		return
	}
	if err := w.queue.Complete(ctx, job.ID, result); err != nil {
		log.Printf("JOBS-COMPLETE %s: %v", job.ID, err)
	}
}
