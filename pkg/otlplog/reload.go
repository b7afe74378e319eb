package otlplog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hyp3rd/otlplog/internal/constants"
	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/runtime"
)

func (c *Client) startConfigWatcher(ctx context.Context) error {
	if !c.opts.watchConfig {
		return nil
	}

	path := c.opts.fileWatcherPath()
	if path == "" {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return ewrap.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ewrap.Wrap(err, "create config watcher")
	}

	dir := filepath.Dir(abs)

	err = watcher.Add(dir)
	if err != nil {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log().Error(ctx, closeErr, "close config watcher after add failure")
		}

		return ewrap.Wrap(err, "watch config directory")
	}

	ctx, cancel := context.WithCancel(ctx)

	c.watchCancel = cancel
	go c.watchLoop(ctx, watcher, abs)

	return nil
}

// watchLoop monitors configuration changes and triggers reloads.
//
//nolint:revive // cognitive-complexity: Breaking this up would reduce clarity.
func (c *Client) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer func() {
		closeErr := watcher.Close()
		if closeErr != nil {
			c.log().Error(ctx, closeErr, "close config watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name != target {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			c.log().Info(ctx, "configuration change detected", attribute.String("path", target))
			c.reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			c.log().Error(ctx, err, "config watcher error")
		}
	}
}

// reload rebuilds the runtime and pipeline from a fresh configuration and swaps
// them in. The previous pair is drained after the swap. A configuration that
// fails to load or build leaves the active pair untouched, and a closed client
// is never reloaded.
func (c *Client) reload(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.RLock()
	closed, active := c.closed, c.digest
	c.mu.RUnlock()

	if closed {
		c.log().Debug(ctx, "client closed, reload skipped")

		return
	}

	cfg, err := c.opts.loadConfig(ctx)
	if err != nil {
		c.log().Error(ctx, err, "reload config failed")

		return
	}

	digest := c.digestOf(ctx, cfg)
	if digest != "" && digest == active {
		c.log().Debug(ctx, "configuration unchanged, reload skipped")

		return
	}

	c.applyLogging(cfg.Logging)

	rt, handle, err := c.build(ctx, cfg)
	if err != nil {
		c.log().Error(ctx, err, "pipeline rebuild failed")

		return
	}

	c.mu.Lock()
	oldRuntime, oldHandle := c.runtime, c.handle
	c.runtime = rt
	c.handle = handle
	c.cfg = cfg
	c.digest = digest
	c.mu.Unlock()

	c.counters.IncrementConfigReloads()
	c.restartDiagnostics(ctx, cfg.Diagnostics, rt)
	c.release(ctx, oldRuntime, oldHandle)

	c.log().Info(ctx, "pipeline reloaded", attribute.Int64("reloads", c.counters.ConfigReloads()))
}

// restartDiagnostics rebinds the diagnostics server to the new configuration and
// self-telemetry providers.
func (c *Client) restartDiagnostics(ctx context.Context, cfg config.DiagnosticsConfig, rt *runtime.Runtime) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
	defer cancel()

	err := c.stopDiagnostics(stopCtx)
	if err != nil {
		c.log().Error(stopCtx, err, "stop diagnostics server")
	}

	if !cfg.Enabled {
		return
	}

	err = c.startDiagnostics(ctx, cfg, rt)
	if err != nil {
		c.log().Error(ctx, err, "diagnostics server disabled")
	}
}

func (c *Client) digestOf(ctx context.Context, cfg config.Config) string {
	digest, err := configDigest(cfg)
	if err != nil {
		c.log().Error(ctx, err, "config digest unavailable")

		return ""
	}

	return digest
}

func configDigest(cfg config.Config) (string, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", ewrap.Wrap(err, "marshal config")
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:]), nil
}
