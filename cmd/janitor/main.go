package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldomjan/sharedcal/internal/janitor"
	"github.com/ldomjan/sharedcal/internal/logger"
	"github.com/ldomjan/sharedcal/internal/rabbit"
	"github.com/ldomjan/sharedcal/internal/storagebuilder"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

var configFile string

const sweepTimeout = 5 * time.Minute

func init() {
	flag.StringVar(&configFile, "config", "./configs/janitor_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

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

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to queue: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	retention := time.Duration(config.Janitor.RetentionDays) * 24 * time.Hour
	j := janitor.New(stor, r, retention)

	sweep := func() {
		ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		if err := j.Sweep(ctx); err != nil {
			log.Errorf("sweep failed: %v", err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(config.Janitor.Schedule, sweep); err != nil {
		log.Errorf("invalid schedule %q: %v", config.Janitor.Schedule, err)
		return
	}

	log.Info("janitor is running...")
	sweep()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
}
