package engine

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/fractal/rt/tree"
)

const (
	DefaultChunkSize = 256
	DefaultQueueSize = 256
)

// LevelJob is the completion handle of one level's update batch. It fires
// once every node of the level has its world transform and matrix written.
type LevelJob struct {
	Level     int
	dependsOn *LevelJob
	done      chan struct{}
	elapsed   time.Duration
	chunks    int
}

func (j *LevelJob) Done() <-chan struct{} {
	return j.done
}

func (j *LevelJob) Wait() {
	<-j.done
}

// Elapsed is the compute time of the level. Valid after Wait.
func (j *LevelJob) Elapsed() time.Duration {
	return j.elapsed
}

// Chunks is the number of pool tasks the level was split into. Valid after Wait.
func (j *LevelJob) Chunks() int {
	return j.chunks
}

// Engine propagates transforms through a tree one level at a time. Nodes of a
// level are split into chunks that run on a shared worker pool.
type Engine struct {
	workers   int
	chunkSize int
	queueSize int

	pool   worker.DynamicWorkerPool
	taskID atomic.Int64
	closed atomic.Bool
}

type Option func(*Engine)

// WithWorkers sets the pool size. Values < 1 select NumCPU-1 (at least 1).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithChunkSize sets how many nodes one pool task updates.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

func New(options ...Option) *Engine {
	e := &Engine{
		chunkSize: DefaultChunkSize,
		queueSize: DefaultQueueSize,
	}
	for _, option := range options {
		option(e)
	}
	if e.workers < 1 {
		e.workers = max(runtime.NumCPU()-1, 1)
	}
	// Workers are reused across frames and live until Close.
	e.pool = worker.NewDynamicWorkerPool(e.workers, e.queueSize, time.Second)
	return e
}

func (e *Engine) Workers() int {
	return e.workers
}

func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// Schedule starts one job per level and returns their handles root first.
// Job L waits for job L-1 before touching its nodes, so callers may consume
// finished levels while deeper ones are still computing. The caller must
// wait for every returned job before mutating or releasing the tree.
func (e *Engine) Schedule(t *tree.Tree, f Frame) []*LevelJob {
	jobs := make([]*LevelJob, t.Depth())
	var prev *LevelJob
	for li := range jobs {
		job := &LevelJob{
			Level:     li,
			dependsOn: prev,
			done:      make(chan struct{}),
		}
		jobs[li] = job
		go e.run(t, job, f)
		prev = job
	}
	return jobs
}

// Update schedules a frame and blocks until every level is written.
func (e *Engine) Update(t *tree.Tree, f Frame) {
	jobs := e.Schedule(t, f)
	jobs[len(jobs)-1].Wait()
}

func (e *Engine) run(t *tree.Tree, job *LevelJob, f Frame) {
	defer close(job.done)
	if job.dependsOn != nil {
		<-job.dependsOn.done
	}

	start := time.Now()
	defer func() {
		job.elapsed = time.Since(start)
	}()

	if job.Level == 0 {
		UpdateRoot(t.Level(0), f)
		job.chunks = 1
		return
	}

	parent, level := t.Level(job.Level-1), t.Level(job.Level)
	n := level.Len()
	if n <= e.chunkSize || e.closed.Load() {
		UpdateRange(parent, level, f, 0, n)
		job.chunks = 1
		return
	}

	// pool.Wait blocks until the whole pool idles; the WaitGroup scopes the
	// barrier to this level's chunks.
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += e.chunkSize {
		hi := min(lo+e.chunkSize, n)
		wg.Add(1)
		job.chunks++
		e.pool.SubmitTask(worker.Task{
			ID: int(e.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				UpdateRange(parent, level, f, lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// Close stops the worker pool and returns once every worker goroutine has
// exited. Levels scheduled afterwards run on their job goroutine. Close must
// not race a running Schedule. Close is idempotent.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	// Stop only signals workers through a shared channel and does not join
	// them, so each worker is handed a task that ends its goroutine instead.
	e.pool.ClearTaskQueue()
	var wg sync.WaitGroup
	for range e.workers {
		wg.Add(1)
		e.pool.SubmitTask(worker.Task{
			ID: int(e.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				runtime.Goexit()
				return nil, nil
			},
		})
	}
	wg.Wait()
}
