package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/unrepo/devportal/internal/cache"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/dashboard"
	"github.com/unrepo/devportal/internal/keystore"
	"github.com/unrepo/devportal/internal/models"
	"github.com/unrepo/devportal/internal/session"
)

func main() {
	// Diagnostics go to stderr so stdout stays clean for output
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command string
		email   string
		token   string
		keyType string
		name    string
		keyID   string
		tab     string
		reveal  bool
		yes     bool
		asJSON  bool
		watch   time.Duration
	)

	flag.StringVar(&command, "command", "list", "Command: list, usage, create, delete, copy, watch")
	flag.StringVar(&email, "email", os.Getenv("UNREPO_EMAIL"), "Identity email, ignored when -token is set")
	flag.StringVar(&token, "token", os.Getenv("UNREPO_SESSION"), "Portal session token")
	flag.StringVar(&keyType, "type", "RESEARCH", "Key type for create: RESEARCH or CHATBOT")
	flag.StringVar(&name, "name", "", "Key name for create")
	flag.StringVar(&keyID, "id", "", "Key id for delete and copy")
	flag.StringVar(&tab, "tab", "keys", "Initial dashboard tab: keys, usage, create")
	flag.BoolVar(&reveal, "reveal", false, "Show full secrets in list output")
	flag.BoolVar(&yes, "yes", false, "Skip the delete confirmation prompt")
	flag.BoolVar(&asJSON, "json", false, "Print the dashboard view as JSON")
	flag.DurationVar(&watch, "for", 0, "How long watch runs (0 = until interrupted)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	provider, err := identityProvider(cfg, email, token)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.NewContext(provider, cfg.Backend.Timeout)
	identity := sess.Resolve(ctx).Identity()

	store, err := cache.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open key cache")
	}
	defer store.Close()

	var confirmer dashboard.Confirmer = promptConfirmer{in: os.Stdin, out: os.Stderr}
	if yes {
		confirmer = dashboard.ConfirmFunc(func(context.Context, string) bool { return true })
	}

	ctrl, err := dashboard.New(dashboard.Options{
		Store:          keystore.NewClient(&cfg.Backend),
		Session:        sess,
		Notifier:       printNotifier{out: os.Stderr},
		Confirmer:      confirmer,
		Clipboard:      osc52Clipboard{out: os.Stdout},
		Cache:          cache.ForIdentity(store, identity),
		InitialTab:     dashboard.ParseTab(tab),
		CopyResetDelay: cfg.Dashboard.CopyResetDelay,
		FreeTierCap:    cfg.Dashboard.FreeTierCap,
		PreviewLength:  cfg.Dashboard.PreviewLength,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dashboard")
	}
	defer ctrl.Close()

	ctrl.Start(ctx)
	if !ctrl.Session().Authenticated() {
		fmt.Fprintln(os.Stderr, "Sign in with GitHub to manage API keys (pass -email or -token)")
		os.Exit(1)
	}

	out := newPrinter(os.Stdout, asJSON)
	switch command {
	case "list":
		if reveal {
			for _, k := range ctrl.Keys() {
				_, _ = ctrl.ToggleVisibility(k.ID)
			}
		}
		err = out.view(ctrl.View())
	case "usage":
		err = out.usage(ctrl.Usage(), ctrl.TotalCalls())
	case "create":
		var res *keystore.GenerateResult
		res, err = create(ctx, ctrl, models.KeyType(strings.ToUpper(keyType)), name)
		if err == nil {
			fmt.Fprintln(os.Stdout, res.Secret)
		}
	case "delete":
		err = ctrl.DeleteKey(ctx, keyID)
		if errors.Is(err, dashboard.ErrNotConfirmed) {
			fmt.Fprintln(os.Stderr, "Delete cancelled")
			err = nil
		}
	case "copy":
		_, err = ctrl.CopyKey(ctx, keyID)
	case "watch":
		err = runWatch(ctx, ctrl, cfg, out, watch)
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// identityProvider resolves the session from a portal token, or from a bare email
func identityProvider(cfg *config.Config, email, token string) (session.Provider, error) {
	if token != "" {
		claims, err := session.NewTokenManager(cfg.Session.Secret, cfg.Session.Expiry).Parse(token)
		if err != nil {
			return nil, err
		}
		return session.ClaimsProvider{Claims: claims}, nil
	}
	if email == "" {
		return session.StaticProvider{}, nil
	}
	return session.StaticProvider{User: &session.User{Email: email}}, nil
}

func create(ctx context.Context, ctrl *dashboard.Controller, keyType models.KeyType, name string) (*keystore.GenerateResult, error) {
	if err := ctrl.OpenCreation(keyType); err != nil {
		return nil, err
	}
	if err := ctrl.SetCreationName(name); err != nil {
		return nil, err
	}
	return ctrl.SubmitCreation(ctx)
}
