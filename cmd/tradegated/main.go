package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradegate/server/internal/auth"
	"github.com/tradegate/server/internal/config"
	"github.com/tradegate/server/internal/data"
	"github.com/tradegate/server/internal/handler"
	gonet "github.com/tradegate/server/internal/net"
	"github.com/tradegate/server/internal/persist"
	"github.com/tradegate/server/internal/scripting"
	"github.com/tradegate/server/internal/settle"
	"github.com/tradegate/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("TRADEGATE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	fmt.Println()
	fmt.Printf("  \033[36;1m%s\033[0m · 交易伺服器 \033[90m(%s)\033[0m\n\n", cfg.Server.Name, cfg.Server.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 3. Connect to PostgreSQL (optional — enables the trade audit log)
	var tradeLog *persist.TradeLogRepo
	if cfg.Database.DSN != "" {
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")

		tradeLog = persist.NewTradeLogRepo(db)
	}

	// 4. Load the item catalog (optional — enables the tradeable check)
	var itemTable *data.ItemTable
	if cfg.Data.ItemsFile != "" {
		itemTable, err = data.LoadItemTable(cfg.Data.ItemsFile)
		if err != nil {
			return fmt.Errorf("load item catalog: %w", err)
		}
		printOK(fmt.Sprintf("道具目錄載入完成 (%d)", itemTable.Count()))
	}

	// 5. Initialize Lua scripting engine (optional)
	var luaEngine *scripting.Engine
	if cfg.Scripting.Dir != "" {
		luaEngine, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		printOK("Lua 腳本載入完成")
	}

	// 6. Token verifier and settlement client
	verifier, err := auth.NewVerifier([]byte(cfg.Auth.BackendPublicKey), log)
	if err != nil {
		return fmt.Errorf("verifier: %w", err)
	}
	if !verifier.Enabled() {
		log.Warn("認證已停用（開發模式）— token 將直接作為玩家 ID")
	}

	var settler *settle.Client
	if cfg.SettlementEnabled() {
		settler, err = settle.NewClient(cfg.Settlement.Endpoint, []byte(cfg.Settlement.PrivateKey), log)
		if err != nil {
			return fmt.Errorf("settlement client: %w", err)
		}
		printOK("結算端點已設定")
	}

	// 7. Create the coordinator
	evtPerSec := 0
	if cfg.RateLimit.Enabled {
		evtPerSec = cfg.RateLimit.EventsPerSecond
	}

	coord := handler.NewCoordinator(&handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     world.NewState(),
		Verifier:  verifier,
		Settler:   settler,
		TradeLog:  tradeLog,
		Items:     itemTable,
		Scripting: luaEngine,
	})

	// 8. Create the network server
	srv, err := gonet.NewServer(
		cfg.BindAddress(),
		cfg.Network.InQueueSize,
		cfg.Network.OutQueueSize,
		evtPerSec,
		cfg.Network.WriteTimeout,
		log,
	)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go srv.Serve()
	go coord.Run(srv)

	printReady(fmt.Sprintf("伺服器啟動完成  listen=%s", srv.Addr()))
	fmt.Println()

	// 9. Wait for shutdown signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh

	log.Info(fmt.Sprintf("收到 %s，關閉伺服器", sig))
	srv.Shutdown()
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
