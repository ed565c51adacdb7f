package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ChannelSync/internal/lease"
	"ChannelSync/internal/metrics"
	"ChannelSync/internal/model"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrRunQueued 已有运行在进行，本次触发合并到其结束后的下一轮
var ErrRunQueued = errors.New("生成任务运行中，触发已排队")

// Runner 执行一次生成
type Runner interface {
	Run(ctx context.Context, trigger string) (*model.GenerationRun, error)
}

// 租约重试间隔上限
const maxLeaseRetry = time.Minute

// CoordinatorOptions 调度参数
type CoordinatorOptions struct {
	RunTimeout time.Duration
	Location   *time.Location
	Metrics    *metrics.GenerationMetrics
	LeaseRetry time.Duration // 租约被占用时的首次重试间隔，默认 5s
}

// Coordinator 保证同一时刻最多一个生成任务：运行中的触发合并为一次补跑，
// 跨进程互斥交给 lease。
type Coordinator struct {
	runner Runner
	lease  lease.Lease
	opts   CoordinatorOptions
	logger *logrus.Logger

	mu        sync.Mutex
	running   bool
	rerun     bool
	rerunFrom string
	cancel    context.CancelFunc
	stopped   bool
	wg        sync.WaitGroup

	cron *cron.Cron
}

func NewCoordinator(runner Runner, l lease.Lease, opts CoordinatorOptions, logger *logrus.Logger) *Coordinator {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.LeaseRetry <= 0 {
		opts.LeaseRetry = 5 * time.Second
	}
	return &Coordinator{runner: runner, lease: l, opts: opts, logger: logger}
}

// Trigger 请求一次生成。空闲时立即在后台启动并返回 nil；
// 运行中则登记补跑并返回 ErrRunQueued。
func (c *Coordinator) Trigger(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return errors.New("调度器已停止")
	}
	if c.running {
		c.rerun = true
		c.rerunFrom = source
		c.recordTrigger(source, true)
		c.logger.WithField("trigger", source).Info("生成任务运行中，已合并到下一轮")
		return ErrRunQueued
	}
	c.running = true
	c.recordTrigger(source, false)
	c.wg.Add(1)
	go c.loop(source)
	return nil
}

func (c *Coordinator) recordTrigger(source string, queued bool) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordTrigger(source, queued)
	}
}

func (c *Coordinator) loop(source string) {
	defer c.wg.Done()
	for {
		c.runOnce(source)

		c.mu.Lock()
		if c.rerun && !c.stopped {
			c.rerun = false
			source = c.rerunFrom
			c.mu.Unlock()
			continue
		}
		c.rerun = false
		c.running = false
		c.mu.Unlock()
		return
	}
}

func (c *Coordinator) runOnce(source string) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	release, err := c.acquire(ctx, source)
	if err != nil {
		c.logger.WithError(err).WithField("trigger", source).Error("获取生成锁失败")
		return
	}
	defer release()

	if _, err := c.runner.Run(ctx, source); err != nil {
		c.logger.WithError(err).WithField("trigger", source).Warn("生成任务结束但未成功")
	}
}

// acquire 租约被其他实例占用时排队等待，间隔翻倍重试，直到拿到租约或 ctx 结束（取消、超时、停止）
func (c *Coordinator) acquire(ctx context.Context, source string) (func(), error) {
	wait := c.opts.LeaseRetry
	for {
		release, err := c.lease.Acquire(ctx)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, lease.ErrHeld) {
			return nil, err
		}
		c.logger.WithFields(logrus.Fields{"trigger": source, "lease": c.lease.Name(), "retry_in": wait}).
			Warn("其他实例正在生成，排队等待租约")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > maxLeaseRetry {
			wait = maxLeaseRetry
		}
	}
}

// Cancel 取消运行中的任务，没有运行中的任务时返回 false
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.rerun = false
	return true
}

// Running 是否有任务在运行
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start 按 cron 表达式定时触发；空表达式不启用定时
func (c *Coordinator) Start(spec string) error {
	if spec == "" {
		return nil
	}
	cr := cron.New(cron.WithLocation(c.opts.Location))
	if _, err := cr.AddFunc(spec, func() {
		if err := c.Trigger("cron"); err != nil && !errors.Is(err, ErrRunQueued) {
			c.logger.WithError(err).Warn("定时触发失败")
		}
	}); err != nil {
		return err
	}
	c.cron = cr
	cr.Start()
	c.logger.WithField("cron", spec).Info("定时生成已启动")
	return nil
}

// Wait 等待后台任务（含补跑）全部结束
func (c *Coordinator) Wait() { c.wg.Wait() }

// Stop 停止定时器、取消运行中的任务并等待其退出
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.rerun = false
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if c.cron != nil {
		<-c.cron.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
