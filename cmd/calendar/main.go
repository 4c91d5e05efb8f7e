package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldomjan/sharedcal/internal/app"
	"github.com/ldomjan/sharedcal/internal/auth"
	"github.com/ldomjan/sharedcal/internal/holiday"
	"github.com/ldomjan/sharedcal/internal/hub"
	"github.com/ldomjan/sharedcal/internal/logger"
	"github.com/ldomjan/sharedcal/internal/rabbit"
	internalhttp "github.com/ldomjan/sharedcal/internal/server/http"
	"github.com/ldomjan/sharedcal/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		printVersion()
		return
	}

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	calendar := app.New(stor)
	authService := auth.New(stor)

	if flag.Arg(0) == "adduser" {
		addUser(authService, flag.Arg(1))
		return
	}

	broadcastHub := hub.New()
	holidays := holiday.NewFetcher(holiday.Config{
		BaseURL: config.Holiday.BaseURL,
		Region:  config.Holiday.Region,
	})
	server := internalhttp.NewServer(config.Server, calendar, authService, broadcastHub, holidays)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	go consumeRemovals(ctx, config.Rabbit, broadcastHub)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("failed to stop http server: " + err.Error())
		}
	}()

	log.Info("calendar is running...")

	if err := server.Start(ctx); err != nil {
		log.Error("failed to start http server: " + err.Error())
		cancel()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		err := stor.Close(ctx)
		if err != nil {
			log.Errorf("failed to close storage: %v", err)
		}
		os.Exit(1) //nolint:gocritic
	}
	ctx, cancel = context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	err = stor.Close(ctx)
	if err != nil {
		log.Errorf("failed to close storage: %v", err)
	}
}

// consumeRemovals relays janitor prune notices to every connected
// socket. The queue is optional: without a broker the server still
// serves, and clients age stale events out on their own loads.
func consumeRemovals(ctx context.Context, config rabbit.Config, broadcastHub *hub.Hub) {
	r := rabbit.New(config)
	if err := r.Connect(); err != nil {
		log.Warnf("removal queue unavailable, janitor prunes will not be relayed: %v", err)
		return
	}
	defer r.Close()

	err := r.Consume(ctx, func(msg amqp.Delivery) {
		m := rabbit.Message{}
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			log.Errorf("failed to parse removal notice: %v", err)
			return
		}
		log.Debugf("relaying removal of event %q", m.EventID)
		broadcastHub.BroadcastAll(hub.EventRemoved(m.EventID))
	})
	if err != nil {
		log.Errorf("failed to consume removal queue: %v", err)
	}
}
