package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"github.com/pesio-ai/be-zoo-core/internal/config"
	"github.com/pesio-ai/be-zoo-core/internal/metrics"
	"github.com/pesio-ai/be-zoo-core/internal/service"
	"github.com/pesio-ai/be-zoo-core/internal/session"
	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// passwordEnv lets scripts pass a password without a prompt
const passwordEnv = "ZOO_PASSWORD"

// Command is one zooctl subcommand
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command

	out io.Writer
}

// cli carries the streams subcommands read from and print to
type cli struct {
	in  io.Reader
	out io.Writer
}

func newRootCommand(in io.Reader, out io.Writer) *Command {
	c := &cli{in: in, out: out}

	root := &Command{
		Name:        "zooctl",
		Description: "zooctl - zoo manager operator tool",
		Subcommands: make(map[string]*Command),
		out:         out,
	}

	// Add subcommands
	root.Subcommands["migrate"] = &Command{Name: "migrate", Description: "Apply pending schema migrations", Run: c.migrate}
	root.Subcommands["bootstrap"] = &Command{Name: "bootstrap", Description: "Create the first admin and default ticket types", Run: c.bootstrap}
	root.Subcommands["login"] = &Command{Name: "login", Description: "Verify credentials and print the session role", Run: c.login}
	root.Subcommands["roles"] = &Command{Name: "roles", Description: "List provisioned roles and their capabilities", Run: c.roles}
	root.Subcommands["dashboard"] = &Command{Name: "dashboard", Description: "Print today's headline statistics", Run: c.dashboard}
	root.Subcommands["serve-metrics"] = &Command{Name: "serve-metrics", Description: "Expose Prometheus metrics over HTTP", Run: c.serveMetrics}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if sub, ok := c.Subcommands[args[0]]; ok {
		return sub.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintln(c.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// env is everything a subcommand needs once configuration is loaded
type env struct {
	cfg      *config.Config
	log      *logger.Logger
	gateway  *store.Gateway
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	services *service.Services
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: "zooctl",
		Pretty:      cfg.LogPretty,
		Output:      os.Stderr,
	})

	// Initialize database connection
	gateway, err := store.Open(ctx, store.Options{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	}, log)
	if err != nil {
		return nil, err
	}

	if err := gateway.Migrate(ctx); err != nil {
		gateway.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize services
	services, err := service.New(gateway, service.Options{
		PasswordParams: cfg.PasswordParams(),
		Metrics:        m,
		Logger:         log,
	})
	if err != nil {
		gateway.Close()
		return nil, err
	}

	return &env{
		cfg:      cfg,
		log:      log,
		gateway:  gateway,
		registry: registry,
		metrics:  m,
		services: services,
	}, nil
}

func (e *env) Close() {
	if err := e.gateway.Close(); err != nil {
		e.log.Error().Err(err).Msg("Failed to close database")
	}
}

func (c *cli) migrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// openEnv migrates on the way in
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Fprintln(c.out, "Schema is up to date")
	return nil
}

func (c *cli) bootstrap(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	username := fs.String("u", "", "admin username (default BOOTSTRAP_ADMIN_USERNAME)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	name := *username
	if name == "" {
		name = e.cfg.Bootstrap.AdminUsername
	}

	res, err := e.services.Bootstrap.Run(ctx, name, e.cfg.Bootstrap.AdminPassword)
	if err != nil {
		return err
	}

	if res.AdminCreated {
		fmt.Fprintf(c.out, "Created admin %s (id %d)\n", name, res.AdminID)
	} else {
		fmt.Fprintln(c.out, "An active admin already exists; nothing to do")
	}
	if res.TicketTypesCreated > 0 {
		fmt.Fprintf(c.out, "Created %d default ticket types\n", res.TicketTypesCreated)
	}
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := c.authenticate(ctx, e, *username)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Logged in as %s (%s), session %s\n", sess.Username, sess.Role, sess.ID)
	return nil
}

func (c *cli) roles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("roles", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	roles, err := e.services.Users.Roles(ctx)
	if err != nil {
		return err
	}

	for _, r := range roles {
		caps := "(none)"
		if len(r.Capabilities) > 0 {
			caps = strings.Join(r.Capabilities, " ")
		}
		fmt.Fprintf(c.out, "%-12s %s\n", r.Role, caps)
	}
	return nil
}

func (c *cli) dashboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := c.authenticate(ctx, e, *username)
	if err != nil {
		return err
	}

	d, err := e.services.Reports.Dashboard(ctx, sess)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Animals:        %d\n", d.Animals)
	fmt.Fprintf(c.out, "Enclosures:     %d\n", d.Enclosures)
	fmt.Fprintf(c.out, "Tickets today:  %d\n", d.TicketsToday)
	fmt.Fprintf(c.out, "Revenue today:  %s\n", d.RevenueToday)
	fmt.Fprintf(c.out, "Active users:   %d\n", d.ActiveUsers)
	return nil
}

func (c *cli) serveMetrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-metrics", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (default METRICS_ADDR or :9090)")
	interval := fs.Duration("interval", 15*time.Second, "pool statistics refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	listen := *addr
	if listen == "" {
		listen = e.cfg.MetricsAddr
	}
	if listen == "" {
		listen = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(e.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := e.gateway.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			e.metrics.SetDBStats(e.gateway.Stats())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		e.log.Info().Str("addr", listen).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	e.log.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}

	e.log.Info().Msg("Server stopped")
	return nil
}

// authenticate logs username in with a password from ZOO_PASSWORD, the
// terminal, or the first line of piped input
func (c *cli) authenticate(ctx context.Context, e *env, username string) (*session.Session, error) {
	if username == "" {
		return nil, errors.New("-u is required")
	}

	pw, err := c.readPassword()
	if err != nil {
		return nil, err
	}

	return e.services.Auth.Authenticate(ctx, username, pw)
}

func (c *cli) readPassword() (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}

	fmt.Fprint(c.out, "Password: ")

	// No echo when a person is typing
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(c.out)
	return strings.TrimRight(line, "\r\n"), nil
}
