package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"IMS-backend/internal/platform/ctxutil"
	"IMS-backend/internal/platform/observability"
)

type Job func(ctx context.Context) error

// Runner: ctx がキャンセルされるまで登録したジョブを周期実行する
type Runner struct {
	ctx context.Context
	log *zap.Logger
	wg  sync.WaitGroup
}

func New(ctx context.Context, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctx: ctx, log: log}
}

func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	if interval <= 0 {
		r.log.Info("job disabled", zap.String("job", name))
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.RunOnce(name, fn)
			}
		}
	}()
}

// RunOnce: panic も失敗として数え、ランナーは止めない
func (r *Runner) RunOnce(name string, fn Job) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", name, rec)
		}
		if err != nil {
			jobErrors.WithLabelValues(name).Inc()
			observability.CaptureErr(err)
			r.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	return fn(r.ctx)
}

// Wait: シャットダウン時に実行中のジョブを待つ
func (r *Runner) Wait() { r.wg.Wait() }

// HoursResyncer: users.total_hours を承認済みキャプチャから再計算する
type HoursResyncer interface {
	ResyncAllHours(ctx context.Context) (int64, error)
}

func HoursResync(svc HoursResyncer, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		ctx, cancel := ctxutil.WithDBTimeout(ctx)
		defer cancel()
		n, err := svc.ResyncAllHours(ctx)
		if err != nil {
			return fmt.Errorf("resync hours: %w", err)
		}
		if log != nil {
			log.Debug("hours resynced", zap.Int64("students", n))
		}
		return nil
	}
}
