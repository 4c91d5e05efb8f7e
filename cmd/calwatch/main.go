package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env"
	"github.com/ldomjan/sharedcal/internal/client"
	"github.com/ldomjan/sharedcal/internal/logger"
	log "github.com/sirupsen/logrus"
)

// calwatch tails a shared calendar in the terminal: it loads the
// merged view once and then prints every live change as it arrives.
type config struct {
	ServerURL   string `env:"CAL_SERVER" envDefault:"http://127.0.0.1:8005"`
	Username    string `env:"CAL_USERNAME"`
	Password    string `env:"CAL_PASSWORD"`
	SessionFile string `env:"CAL_SESSION_FILE" envDefault:".calwatch-session.json"`
	LogLevel    string `env:"CAL_LOG_LEVEL" envDefault:"WARN"`
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Errorf("failed to parse environment: %v", err)
		os.Exit(1)
	}
	if err := logger.PrepareLogger(logger.Config{Level: cfg.LogLevel}); err != nil {
		log.Errorf("failed to start: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Errorf("calwatch failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	session, err := client.LoadSession(cfg.SessionFile)
	if err != nil {
		return err
	}

	c, err := client.New(cfg.ServerURL, session, time.Local)
	if err != nil {
		return err
	}

	if err := ensureLogin(ctx, c, session, cfg); err != nil {
		return err
	}

	if err := c.Load(ctx); err != nil {
		return err
	}
	printDay(c, time.Now())
	c.OnChange(func() { printDay(c, time.Now()) })

	fmt.Println("watching for changes, Ctrl+C to stop")
	return c.Run(ctx)
}

// ensureLogin reuses the persisted session when the server still
// accepts it, otherwise logs in fresh and saves the new snapshot.
func ensureLogin(ctx context.Context, c *client.Client, session *client.Session, cfg config) error {
	if session.Authenticated() {
		if _, err := c.API().CurrentUser(ctx); err == nil {
			log.Infof("resumed session for %s", session.User.Username)
			return nil
		}
		session.Clear()
	}

	if cfg.Username == "" || cfg.Password == "" {
		return fmt.Errorf("no saved session; set CAL_USERNAME and CAL_PASSWORD")
	}
	if err := c.API().Login(ctx, cfg.Username, cfg.Password); err != nil {
		return err
	}
	if err := session.Save(cfg.SessionFile); err != nil {
		log.Warnf("failed to save session: %v", err)
	}
	return nil
}

func printDay(c *client.Client, day time.Time) {
	fmt.Printf("events on %s:\n", day.Format("2006-01-02"))
	for _, h := range c.Cache().Holidays(day) {
		fmt.Printf("  [holiday] %s\n", h.Title)
	}
	for _, e := range c.Cache().View(day) {
		fmt.Printf("  %s-%s  %-30s (%s)\n",
			e.Start.Format("15:04"), e.End.Format("15:04"), e.Title, e.OwnerName)
	}
}
