package worker

import (
	"context"
	"sync"
	"time"

	"crowdvote/pkg/metrics"

	"go.uber.org/zap"
)

// Task 后台任务。Key 用于日志定位，Run 返回错误时按重试策略处理
type Task struct {
	Name  string
	Key   string
	Run   func(ctx context.Context) error
	Retry int // 已重试次数
}

// Submitter 供业务服务依赖的最小接口
type Submitter interface {
	AddTask(task Task) bool
}

type WorkerPool struct {
	TaskQueue  chan Task
	RetryQueue chan Task // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	Backoff    time.Duration // 第 n 次重试前等待 n*Backoff

	log     *zap.Logger
	metrics *metrics.MetricsCollector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewWorkerPool(workerNum, bufferSize, maxRetry int, log *zap.Logger, m *metrics.MetricsCollector) *WorkerPool {
	retrySize := bufferSize / 2
	if retrySize < 1 {
		retrySize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		TaskQueue:  make(chan Task, bufferSize),
		RetryQueue: make(chan Task, retrySize),
		WorkerNum:  workerNum,
		MaxRetry:   maxRetry,
		Backoff:    time.Second,
		log:        log,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	p.log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务并等待进行中的任务结束，队列中剩余任务记入死信日志
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		for {
			select {
			case task := <-p.TaskQueue:
				p.logFailedTask(task, context.Canceled)
			case task := <-p.RetryQueue:
				p.logFailedTask(task, context.Canceled)
			default:
				return
			}
		}
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.TaskQueue:
			p.metrics.SetQueueDepth(len(p.TaskQueue))
			p.handle(id, task)
		}
	}
}

func (p *WorkerPool) handle(id int, task Task) {
	err := p.processTask(task)
	if err == nil {
		return
	}

	p.log.Warn("task failed",
		zap.Int("worker", id),
		zap.String("task", task.Name),
		zap.String("key", task.Key),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)

	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}

	task.Retry++
	select {
	case p.RetryQueue <- task:
	default:
		p.logFailedTask(task, err)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-p.ctx.Done():
				p.logFailedTask(task, context.Canceled)
				return
			case <-time.After(time.Duration(task.Retry) * p.Backoff):
			}

			select {
			case p.TaskQueue <- task:
			default:
				p.logFailedTask(task, nil)
			}
		}
	}
}

// processTask 执行任务并把 panic 转成错误
func (p *WorkerPool) processTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return task.Run(p.ctx)
}

// TODO: 死信目前只写日志，需要落库后才能人工补偿
func (p *WorkerPool) logFailedTask(task Task, err error) {
	p.metrics.RecordBackgroundFailure("dead_letter")
	p.log.Error("task failed permanently",
		zap.String("task", task.Name),
		zap.String("key", task.Key),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// AddTask 非阻塞入队，队列已满或已停止时返回 false
func (p *WorkerPool) AddTask(task Task) bool {
	if p.ctx.Err() != nil {
		p.logFailedTask(task, context.Canceled)
		return false
	}
	select {
	case p.TaskQueue <- task:
		p.metrics.SetQueueDepth(len(p.TaskQueue))
		return true
	default:
		p.logFailedTask(task, nil)
		return false
	}
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return "task panicked"
}
