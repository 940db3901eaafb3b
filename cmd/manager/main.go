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

	"argbot/internal/broadcast"
	"argbot/internal/config"
	"argbot/internal/kit"
	"argbot/internal/manager"
	"argbot/internal/store"
	"argbot/internal/telegram"
	"argbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to config yaml (optional)")
	flag.Parse()

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath, "TELEGRAM_TOKEN")
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := cfg.ValidateManager(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: *cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}).With(logx.String("proc", "manager"))

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

	pub := broadcast.NewPublisher(st, log.With(logx.String("comp", "publisher")))
	handler := manager.New(cfg.Manager.Password, st, pub, ad, log.With(logx.String("comp", "bot")))

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

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("manager started")

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = ad.Stop(stopCtx)
	stopCancel()
}
