package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"fabric-qc/config"
	"fabric-qc/internal/api"
	"fabric-qc/internal/container"
	"fabric-qc/internal/timeutil"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Собираем конвейер и сервисы приложения
	c, err := container.New(cfg, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer c.Close()
	log.Printf("Detection strategy: %s", c.Strategy.Name())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Printf("%s stopped", name)
		}()
	}

	run("frame worker", func() { c.Worker.Run(ctx) })
	run("event hub", func() { c.Hub.Run(ctx, c.Sink.Events()) })

	server := api.NewServer(c.Worker, c.Hub)
	run("http server", func() {
		if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	})

	if cfg.CameraURL != "" {
		camera := api.NewCameraClient(cfg.CameraURL, c.Worker, timeutil.RealClock{})
		run("camera client", func() {
			if err := camera.Run(ctx); err != nil {
				log.Printf("Camera error: %v", err)
			}
		})
	}

	if cfg.TelegramToken != "" {
		bot, err := api.NewBot(cfg.TelegramToken, c.SubscriberService, c.Worker)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}
		_, notifications := c.Hub.Subscribe(0)
		run("telegram notifier", func() { bot.Notify(ctx, notifications) })
		run("telegram bot", func() {
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		})
	} else {
		log.Println("TELEGRAM_TOKEN is not set, bot is disabled")
	}

	log.Println("Pipeline is running...")
	<-ctx.Done()
	wg.Wait()
}
