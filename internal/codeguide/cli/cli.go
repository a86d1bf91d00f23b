// Package cli implements codeguide-admin, which works on the gateway's
// local store directly using the gateway's own configuration.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/app"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

const usage = `Usage: codeguide-admin [-config file] <command> [flags]

Commands:
  users      list registered users
  register   create a user (prompts for the password)
  session    show the current session
  logout     end the current session
  clear      wipe users, session and token (-yes to skip the prompt)
`

var errUsage = errors.New("usage")

// CLI holds the streams commands talk to.
type CLI struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	in *bufio.Reader
}

// New returns a CLI on the process streams.
func New() *CLI {
	return &CLI{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (c *CLI) reader() *bufio.Reader {
	if c.in == nil {
		c.in = bufio.NewReader(c.Stdin)
	}
	return c.in
}

// Run executes args (without the program name) and returns the exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("codeguide-admin", flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	fs.Usage = func() { fmt.Fprint(c.Stderr, usage) }
	configFile := fs.String("config", os.Getenv("CODEGUIDE_CONFIG_FILE"), "YAML config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	err := c.run(ctx, *configFile, fs.Arg(0), fs.Args()[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fs.Usage()
		return 2
	default:
		fmt.Fprintf(c.Stderr, "codeguide-admin: %v\n", err)
		return 1
	}
}

func (c *CLI) run(ctx context.Context, configFile, cmd string, args []string) error {
	var handler func(context.Context, *service.CredentialService, []string) error
	switch cmd {
	case "users":
		handler = c.users
	case "register":
		handler = c.register
	case "session":
		handler = c.session
	case "logout":
		handler = c.logout
	case "clear":
		handler = c.clear
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	cfg, err := app.LoadConfigFile(configFile)
	if err != nil {
		return err
	}

	logger := slogx.New(slogx.Config{
		Service: "codeguide-admin",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   "warn",
		Format:  "text",
		Output:  c.Stderr,
	})

	// Hashes must match what the gateway computes.
	cryptox.SetPepperPath(cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return fmt.Errorf("load pepper: %w", err)
	}

	st, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	svc := &service.CredentialService{
		Store:      st,
		Issuer:     cfg.Issuer,
		SessionTTL: cfg.SessionTTL,
	}
	return handler(slogx.WithContext(ctx, logger), svc, args)
}

func closeStore(st store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}
}
