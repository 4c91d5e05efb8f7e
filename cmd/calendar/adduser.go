package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ldomjan/sharedcal/internal/auth"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// addUser creates an account from the terminal, prompting for the
// password without echo.
func addUser(authService *auth.Service, username string) {
	if username == "" {
		log.Error("usage: calendar adduser <username>")
		return
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Errorf("failed to read password: %v", err)
		return
	}
	if len(password) == 0 {
		log.Error("password must not be empty")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := authService.Register(ctx, username, string(password))
	if err != nil {
		log.Errorf("failed to create user: %v", err)
		return
	}
	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
}
