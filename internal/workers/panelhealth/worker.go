package panelhealth

import (
	"context"
	"log/slog"
	"time"

	"blockhost/internal/infra/pterodactyl"
	"blockhost/internal/metrics"
)

const (
	checkInterval = time.Minute
	checkTimeout  = 15 * time.Second
)

type Panel interface {
	ListNodes(ctx context.Context) ([]pterodactyl.Node, error)
}

// Worker probes the game panel on a fixed interval and exposes the
// result as a gauge for alerting.
type Worker struct {
	panel  Panel
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewWorker(panel Panel, logger *slog.Logger) *Worker {
	return &Worker{
		panel:  panel,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return "panel-health"
}

func (w *Worker) Start() error {
	w.logger.Info("Starting panel health worker", "interval", checkInterval)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in panel health worker goroutine", "panic", r)
			}
		}()
		w.run()
	}()
	return nil
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping panel health worker")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	w.check()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	nodes, err := w.panel.ListNodes(ctx)
	if err != nil {
		metrics.PanelUp.Set(0)
		w.logger.Warn("Panel health check failed", "error", err)
		return
	}

	metrics.PanelUp.Set(1)
	w.logger.Debug("Panel health check ok", "node_count", len(nodes))
}
