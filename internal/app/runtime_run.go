package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/room-companion/internal/heartbeat"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("room-companion runtime starting", "addr", r.cfg.HTTPAddr, "connectors", r.router.Names())
	if r.heartbeat != nil {
		r.heartbeat.Beat("runtime", "runtime loop started")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "dispatch", 20*time.Second, func(runCtx context.Context) error {
			return r.dispatcher.Start(runCtx)
		})
	})
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "janitor", 20*time.Second, func(runCtx context.Context) error {
			return runJanitor(runCtx, r.engine, seconds(r.cfg.SweepIntervalSec), seconds(r.cfg.GameIdleSec), r.logger.With("component", "janitor"))
		})
	})
	if r.watcher != nil {
		group.Go(func() error {
			return runMonitored(groupCtx, r.heartbeat, "watcher", 0, func(runCtx context.Context) error {
				return r.watcher.Start(runCtx)
			})
		})
	}
	if r.greeter != nil {
		group.Go(func() error {
			return r.greeter.Start(groupCtx)
		})
	}
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			componentName := "connector:" + strings.ToLower(strings.TrimSpace(connector.Name()))
			return runMonitored(groupCtx, r.heartbeat, componentName, 0, func(runCtx context.Context) error {
				return connector.Start(runCtx)
			})
		})
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "api", 20*time.Second, func(runCtx context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	if r.heartbeatMonitor != nil {
		group.Go(func() error {
			return r.heartbeatMonitor.Start(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	beatInterval time.Duration,
	run func(context.Context) error,
) error {
	if run == nil {
		return nil
	}
	if reporter != nil {
		reporter.Starting(component, "starting")
		reporter.Beat(component, "running")
	}

	var stopHeartbeat func()
	if reporter != nil && beatInterval > 0 {
		heartbeatCtx, cancel := context.WithCancel(ctx)
		stopHeartbeat = cancel
		go func() {
			ticker := time.NewTicker(beatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-heartbeatCtx.Done():
					return
				case <-ticker.C:
					reporter.Beat(component, "running")
				}
			}
		}()
	}

	err := run(ctx)
	if stopHeartbeat != nil {
		stopHeartbeat()
	}
	if reporter == nil {
		return err
	}
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}
