package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper は期限切れセッションの定期削除ジョブ。
// 起動直後に1回実行し、以降はinterval間隔で実行する。
type Sweeper struct {
	registry *Registry
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(registry *Registry, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry: registry,
		logger:   logger,
		interval: interval,
	}
}

// Start はスイープループを開始する。ctxのキャンセルで停止する。
// ブロックするため、goroutineで起動すること。
func (s *Sweeper) Start(ctx context.Context) {
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("セッションスイーパーを停止します")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Sweeper) runOnce() {
	start := time.Now()
	deleted := s.registry.SweepExpired()
	s.logger.Info("期限切れセッションのスイープが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("remaining_count", s.registry.Len()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
