package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scholarscope/harvest-cli/internal/config"
)

// Checker periodically collects a snapshot and pushes threshold alerts.
// One check fires immediately on start so a freshly launched monitor
// surfaces problems without waiting a full interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run blocks until ctx is cancelled, checking once per interval.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitor"))
	log.Info("health checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.checkOnce(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.checkOnce(ctx, log)
		}
	}
}

func (c *Checker) checkOnce(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("snapshot collection failed", zap.Error(err))
		return
	}

	log.Debug("snapshot collected",
		zap.Int("runs", snap.RunsTotal),
		zap.Float64("fail_rate", snap.RunFailRate),
		zap.Int("pending_notifications", snap.PendingNotifications),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("alerts evaluated",
		zap.Int("triggered", len(alerts)),
		zap.Int("sent", sent),
	)
}
