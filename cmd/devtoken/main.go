// devtoken mints a session token in the identity provider's format for
// local development, optionally granting a role in the database.
//
//	devtoken --sub alice --ttl 2h
//	devtoken --sub root --grant admin
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/database"
	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		sub   string
		ttl   time.Duration
		grant string
	)
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&sub, "sub", "", "identity id to put in the token (required)")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flagSet.StringVar(&grant, "grant", "", "also store this role (user|admin) in user_roles")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if sub == "" {
		return fmt.Errorf("--sub is required")
	}

	config.LoadDotEnv()
	secret := os.Getenv("APP_SECRET")
	if secret == "" {
		return fmt.Errorf("APP_SECRET is not set")
	}

	if grant != "" {
		if err := grantRole(sub, grant); err != nil {
			return err
		}
	}

	tok, err := utils.NewSessionToken(secret, sub, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	return nil
}

func grantRole(sub, grant string) error {
	role := model.ParseRole(grant)
	if string(role) != grant {
		return fmt.Errorf("unknown role %q", grant)
	}
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `INSERT INTO user_roles (id, role) VALUES (?, ?) ON DUPLICATE KEY UPDATE role = VALUES(role)`, sub, string(role))
	return err
}
