package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"argbot/internal/argbot"
	"argbot/internal/broadcast"
	"argbot/internal/config"
	"argbot/internal/kit"
	"argbot/internal/store"
	"argbot/internal/telegram"
	"argbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to config yaml (optional)")
	flag.Parse()

	// .env is a convenience for local runs; missing file is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath, "ARG_BOT_TOKEN")
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := cfg.ValidateContent(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: *cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}).With(logx.String("proc", "argbot"))

	st, err := store.Open(cfg.Redis.URL, log.With(logx.String("comp", "store")))
	if err != nil {
		log.Error("store open failed", logx.Err(err))
		os.Exit(1)
	}
	defer st.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = st.Ping(pingCtx)
	pingCancel()
	if err != nil {
		log.Error("store unreachable", logx.Err(err))
		os.Exit(1)
	}

	pollTimeout, err := cfg.PollTimeout()
	if err != nil {
		log.Error("bad config", logx.Err(err))
		os.Exit(1)
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout},
		log.With(logx.String("comp", "telegram")))
	if err != nil {
		log.Error("telegram adapter failed", logx.Err(err))
		os.Exit(1)
	}

	// The captioning feature is an external collaborator; nothing is wired
	// here, so the bot only registers recipients and relays broadcasts.
	handler := argbot.New(st, ad, ad, nil, log.With(logx.String("comp", "bot")))
	engine := broadcast.NewEngine(
		broadcast.EngineConfig{RatePerSec: cfg.Broadcast.RatePerSec},
		ad, st, st, log.With(logx.String("comp", "broadcast")),
	)

	updates := make(chan kit.Update, 64)
	if err := ad.Start(ctx, updates); err != nil {
		log.Error("telegram start failed", logx.Err(err))
		os.Exit(1)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case up := <-updates:
				handler.HandleUpdate(ctx, up)
			}
		}
	}()

	// One engine for the process lifetime; never restarted here. If it dies,
	// exit so the supervisor brings the whole process back.
	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("argbot started")

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-engineDone:
		if err != nil {
			log.Error("broadcast engine exited", logx.Err(err))
			exitCode = 1
		}
		cancel()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = ad.Stop(stopCtx)
	stopCancel()
	os.Exit(exitCode)
}
