// Package cli implements the gophsync command line tool, which inspects and
// maintains a local sync database: pending changes, download cursors,
// validation results and full wipes.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/config"
	"github.com/dmitrijs2005/gophsync/internal/localdb"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type App struct {
	flags *config.Flags
	cfg   *config.Config
	local *localdb.Local
	in    io.Reader
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin)
}

func newRootCommand(in io.Reader) *cobra.Command {
	a := &App{in: in}

	cmd := &cobra.Command{
		Use:   "gophsync",
		Short: "Inspect and maintain a local sync database",
		Long: `gophsync opens the local store used by offline-first clients and reports
the sync bookkeeping kept in it.

Output is a table on a terminal and JSON otherwise.`,
		Example: `  # Entities of type "contact" with unpushed local changes
  gophsync dirties contact --db app.db

  # Download cursor of a user-scoped type
  gophsync cursor order --user-scope --token "$TOKEN"

  # Remove every local row
  gophsync wipe --table contacts --table orders --yes`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}
	a.flags = config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		a.newDirtiesCommand(),
		a.newCursorCommand(),
		a.newValidityCommand(),
		a.newAckCommand(),
		a.newWipeCommand(),
	)
	return cmd
}

func (a *App) open(cmd *cobra.Command, _ []string) error {
	cfg, err := a.flags.Load()
	if err != nil {
		return err
	}
	if cfg.AccessToken == "-" {
		if cfg.AccessToken, err = a.readSecret(cmd, "Access token: "); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger := logging.NewTextLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	a.local, err = localdb.InitDatabase(cmd.Context(), cfg, logger, nil)
	return err
}

// withLocal closes the local database once fn returns, whatever the
// outcome.
func (a *App) withLocal(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.local.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *App) session() (session.Session, error) {
	return a.local.Session()
}

// readSecret reads a line without echo when stdin is a terminal.
func (a *App) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt+" [y/N] ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
