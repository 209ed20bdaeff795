package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/auth"
	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (a *App) cmdConfig(_ context.Context, args []string) error {
	const usage = "config show | set-backend TYPE [key=value...] | set-access-token"
	if len(args) == 0 {
		return wantArgs(args, 1, usage)
	}

	switch args[0] {
	case "show":
		return a.configShow()
	case "set-backend":
		return a.configSetBackend(args[1:])
	case "set-access-token":
		return a.configSetAccessToken()
	default:
		return fmt.Errorf("unknown config command %q (usage: vibe %s): %w", args[0], usage, domain.ErrValidation)
	}
}

func (a *App) configShow() error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	b := cfg.Backend
	rows := [][2]string{
		{"config file", cfg.Path()},
		{"backend", b.Type},
	}
	switch b.Type {
	case config.BackendLocal:
		rows = append(rows, [2]string{"db_path", b.Local.DBPath})
	case config.BackendNotion:
		rows = append(rows,
			[2]string{"token", mask(b.Notion.Token)},
			[2]string{"database_id", b.Notion.DatabaseID},
			[2]string{"data_source_id", orNone(b.Notion.DataSourceID)},
		)
	case config.BackendMicrosoft:
		rows = append(rows,
			[2]string{"client_id", b.Microsoft.ClientID},
			[2]string{"tenant", b.Microsoft.Tenant},
			[2]string{"list_id", orNone(b.Microsoft.ListID)},
			[2]string{"token_cache", b.Microsoft.TokenCache},
		)
	case config.BackendPostgres:
		rows = append(rows, [2]string{"dsn", maskDSN(b.Postgres.DSN)})
	}
	rows = append(rows,
		[2]string{"server", cfg.Server.Addr},
		[2]string{"access token", onOff(cfg.Server.AccessTokenHash != "")},
		[2]string{"log", cfg.Log.Level + " / " + cfg.Log.Format},
	)

	for _, r := range rows {
		fmt.Fprintf(a.stdout, "%s %s\n", a.styles.label.Render(fmt.Sprintf("%-15s", r[0])), r[1])
	}
	return nil
}

func (a *App) configSetBackend(args []string) error {
	if len(args) == 0 {
		return wantArgs(args, 1, "config set-backend TYPE [key=value...]")
	}
	kind := args[0]
	params := make(map[string]string, len(args)-1)
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("parameter %q must be key=value: %w", kv, domain.ErrValidation)
		}
		params[strings.ReplaceAll(strings.TrimLeft(k, "-"), "-", "_")] = v
	}

	path, err := a.resolvedConfigPath()
	if err != nil {
		return err
	}
	if err := config.Update(path, func(c *config.Config) error {
		return c.SetBackend(kind, params)
	}); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.success("backend set to %s", config.NormalizeBackendType(kind)))
	return nil
}

func (a *App) configSetAccessToken() error {
	token, err := auth.GenerateAccessToken()
	if err != nil {
		return err
	}
	hash, err := auth.HashAccessToken(token)
	if err != nil {
		return err
	}

	path, err := a.resolvedConfigPath()
	if err != nil {
		return err
	}
	if err := config.Update(path, func(c *config.Config) error {
		c.Server.AccessTokenHash = hash
		return nil
	}); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.success("web access token set"))
	fmt.Fprintln(a.stdout, "  "+token)
	fmt.Fprintln(a.stdout, a.styles.dim.Render("  shown once; send it as X-API-Key, a bearer token, or the browser password"))
	return nil
}

func (a *App) resolvedConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.DefaultPath()
}

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	if err := wantArgs(args, 1, "login microsoft"); err != nil {
		return err
	}
	if config.NormalizeBackendType(args[0]) != config.BackendMicrosoft {
		return fmt.Errorf("login: unknown provider %q: %w", args[0], domain.ErrValidation)
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	mc := cfg.Backend.Microsoft
	if mc.ClientID == "" {
		return fmt.Errorf("login: set a client id first with \"vibe config set-backend microsoft client_id=...\": %w", domain.ErrConfiguration)
	}

	provider := auth.NewMicrosoftProvider(mc.ClientID, mc.Tenant)
	store := auth.NewFileTokenStore(mc.TokenCache)
	_, err = provider.DeviceLogin(ctx, store, func(p auth.DevicePrompt) {
		fmt.Fprintf(a.stdout, "Open %s and enter the code %s\n", a.styles.label.Render(p.VerificationURI), a.styles.label.Render(p.UserCode))
		if !p.ExpiresAt.IsZero() {
			fmt.Fprintln(a.stdout, a.styles.dim.Render("The code expires at "+p.ExpiresAt.Local().Format(time.Kitchen)))
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.success("signed in; token cached at %s", store.Path()))
	return nil
}

func (a *App) cmdServe(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "serve")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	demo := fs.Bool("demo", false, "Serve an in-memory backend instead of the configured one")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 0, "serve [--addr HOST:PORT] [--demo]"); err != nil {
		return err
	}

	cfg, err := a.config()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *demo {
		cfg.Backend.Type = config.BackendMemory
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg, svc)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Block until shutdown signal or a listen failure.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return mask(dsn)
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
