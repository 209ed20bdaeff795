// Package cli implements the vibe command line: task commands on top of the
// service layer, import/export, configuration, Microsoft sign-in and the web
// server.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/backend"
	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

// Version is set via ldflags at build time.
var Version = "dev" //nolint:gochecknoglobals // set by the linker

// App is one invocation of the command line.
type App struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	styles styles
	now    func() time.Time

	configPath string
	cfg        *config.Config
	svc        *service.Service
	closeFn    func() error
}

// Option customises an App.
type Option func(*App)

// WithService makes the App use svc instead of opening the configured
// backend.
func WithService(svc *service.Service) Option {
	return func(a *App) { a.svc = svc }
}

// WithConfigPath overrides the default config file location.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithClock sets the time used for overdue markers.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func New(stdin io.Reader, stdout, stderr io.Writer, opts ...Option) *App {
	a := &App{
		stdin:  bufio.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
		styles: newStyles(lipgloss.NewRenderer(stdout)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

type namedCommand struct {
	name string
	command
}

// commands returns the dispatch table in help order.
func commands() []namedCommand {
	return []namedCommand{
		{"add", command{"add TITLE [-d DESC] [-p PRIORITY] [--due DATE] [-t TAGS] [--project NAME]", (*App).cmdAdd}},
		{"list", command{"list [-s STATUS] [-p PROJECT] [--tag TAG] [--overdue]", (*App).cmdList}},
		{"show", command{"show ID", (*App).cmdShow}},
		{"start", command{"start ID", (*App).cmdStart}},
		{"done", command{"done ID", (*App).cmdDone}},
		{"pause", command{"pause ID", (*App).cmdPause}},
		{"time", command{"time ID DURATION   (90, 45m, 1.5h, 2h30m)", (*App).cmdTime}},
		{"update", command{"update ID [--title T] [-d DESC] [-p PRIORITY] [--due DATE|--clear-due] [-t TAGS] [--project NAME]", (*App).cmdUpdate}},
		{"delete", command{"delete ID [-y]", (*App).cmdDelete}},
		{"stats", command{"stats", (*App).cmdStats}},
		{"export", command{"export [-f json|csv] [-o FILE] [--ids ID,ID]", (*App).cmdExport}},
		{"import", command{"import FILE [-f json|csv] [--strategy skip|overwrite|create_new]", (*App).cmdImport}},
		{"batch", command{"batch status|priority|project|tags VALUE ID... | batch delete ID...", (*App).cmdBatch}},
		{"config", command{"config show | set-backend TYPE [key=value...] | set-access-token", (*App).cmdConfig}},
		{"login", command{"login microsoft", (*App).cmdLogin}},
		{"serve", command{"serve [--addr HOST:PORT] [--demo]", (*App).cmdServe}},
	}
}

// Run parses global flags and executes one subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("vibe", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() { a.printUsage(a.stderr) }
	configPath := fs.String("config", a.configPath, "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(a.stdout, "vibe", Version)
		return nil
	}
	a.configPath = *configPath

	rest := fs.Args()
	if len(rest) == 0 || rest[0] == "help" {
		a.printUsage(a.stdout)
		return nil
	}

	name, rest := rest[0], rest[1:]
	for _, c := range commands() {
		if c.name == name {
			defer a.close()
			return c.run(a, ctx, rest)
		}
	}

	a.printUsage(a.stderr)
	return fmt.Errorf("unknown command %q", name)
}

func (a *App) printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: vibe [-config FILE] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands() {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

// config loads the configuration once per invocation and applies its
// logging settings.
func (a *App) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	SetupLogging(cfg.Log, a.stderr)

	a.cfg = cfg
	return cfg, nil
}

// service opens the configured backend on first use.
func (a *App) service(ctx context.Context) (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	b, err := backend.New(ctx, cfg, backend.Options{
		OnNotionDataSourceResolved: func(id string) {
			if err := cacheNotionDataSource(cfg.Path(), cfg.Backend.Notion.DatabaseID, id); err != nil {
				log.Warn().Err(err).Msg("caching notion data source id")
			}
		},
	})
	if err != nil {
		return nil, err
	}

	a.closeFn = b.Close
	a.svc = service.New(b.Repo).WithClock(a.now)
	return a.svc, nil
}

// cacheNotionDataSource stores the data source id resolved for databaseID.
// Nothing is written when the file now names another database, either because
// it was reconfigured meanwhile or because the id came from the environment.
func cacheNotionDataSource(path, databaseID, dataSourceID string) error {
	return config.Update(path, func(c *config.Config) error {
		if c.Backend.Notion.DatabaseID != databaseID {
			log.Debug().
				Str("resolved_for", databaseID).
				Str("configured", c.Backend.Notion.DatabaseID).
				Msg("notion database changed, not caching data source id")
			return nil
		}
		c.CacheNotionDataSource(dataSourceID)
		return nil
	})
}

func (a *App) close() {
	if a.closeFn == nil {
		return
	}
	if err := a.closeFn(); err != nil {
		log.Warn().Err(err).Msg("closing backend")
	}
	a.closeFn = nil
}

// confirm asks a yes/no question on stdin; anything but y/yes is no.
func (a *App) confirm(question string) bool {
	fmt.Fprintf(a.stdout, "%s [y/N] ", question)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// SetupLogging points the global zerolog logger at w using the configured
// level and format.
func SetupLogging(cfg config.LogConfig, w io.Writer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isTerminal(f)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// parseArgs parses flags that may appear before, between or after positional
// arguments and returns the positionals in order.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func newFlagSet(a *App, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("vibe "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func notFound(id domain.TaskID) error {
	return fmt.Errorf("task #%s: %w", id, domain.ErrNotFound)
}

func wantArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: vibe %s: %w", usage, domain.ErrValidation)
	}
	return nil
}
