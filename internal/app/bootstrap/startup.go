// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	n := timeouts.ConfigureFromEnv()
	t := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Int("overrides", n),
		zap.Duration("ping", t.Ping),
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium),
		zap.Duration("upload", t.Upload))

	logger.Info("backends",
		zap.Bool("nats", deps.NATS != nil),
		zap.Bool("redis", deps.Redis != nil),
		zap.String("storage", appCfg.StorageType),
		zap.Bool("smtp", appCfg.MailSMTPHost != ""),
		zap.Bool("require_approval", appCfg.RequireApproval))
	return nil
}

// Components built by BuildHandler that own goroutines register a stop
// function here; Shutdown runs them in reverse order.
var (
	stopMu  sync.Mutex
	stopFns []func()
)

func onShutdown(fn func()) {
	stopMu.Lock()
	defer stopMu.Unlock()
	stopFns = append(stopFns, fn)
}

func stopBackground() {
	stopMu.Lock()
	fns := stopFns
	stopFns = nil
	stopMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
