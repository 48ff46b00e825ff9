// Command issue-token выпускает bearer-токен для пользователя (локальная разработка и тесты).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
)

type options struct {
	userID string
	secret string
	ttl    time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.userID, "user", app.DemoCustomerID, "user id (claim userId)")
	fs.StringVar(&opts.secret, "secret", "", "HS256 secret (fallback: STOREFRONT_JWT_SECRET, then dev default)")
	fs.DurationVar(&opts.ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(opts.secret) == "" {
		opts.secret = strings.TrimSpace(getenv("STOREFRONT_JWT_SECRET"))
	}
	if opts.secret == "" {
		opts.secret = app.DefaultJWTSecret
	}
	return opts, nil
}

func run(args []string, getenv func(string) string, stdout io.Writer) error {
	opts, err := parseOptions(args, getenv)
	if err != nil {
		return err
	}

	// пользователь проверяется при каждом запросе, здесь только подпись
	authenticator, err := auth.NewAuthenticator(opts.secret, nil)
	if err != nil {
		return err
	}
	token, err := authenticator.Issue(opts.userID, opts.ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, token)
	return err
}
