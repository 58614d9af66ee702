package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/localdb"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/spf13/cobra"
)

func (a *App) newDirtiesCommand() *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:   "dirties <entity-type-id>",
		Short: "List entities with unpushed local changes",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLocal(func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			meta := repository.Meta{EntityTypeId: args[0]}
			states, err := a.local.States.GetDirties(cmd.Context(), sess, meta, mine)
			if err != nil {
				return err
			}
			if states == nil {
				states = []*models.EntityState{}
			}

			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{s.EntityId, s.UserId, strconv.Itoa(len(s.Patches)), formatTime(s.LocallyModifiedOn)})
			}
			return render(cmd.OutOrStdout(), []string{"ENTITY", "USER", "PATCHES", "MODIFIED"}, rows, states)
		}),
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only entities changed by the current user")
	return cmd
}

func (a *App) newCursorCommand() *cobra.Command {
	var companyScope, userScope bool
	cmd := &cobra.Command{
		Use:   "cursor <entity-type-id>",
		Short: "Show the download cursor of an entity type",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLocal(func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			meta := repository.Meta{EntityTypeId: args[0], HasCompanyScope: companyScope, HasUserScope: userScope}
			state, err := a.local.TypeStates.Find(cmd.Context(), sess, meta)
			if err != nil {
				return err
			}
			if state == nil {
				return fmt.Errorf("no cursor for %s", args[0])
			}
			rows := [][]string{{
				state.EntityTypeId, state.CompanyId, state.UserId,
				formatTime(state.LastDownloadedOn), formatTime(state.LastModifiedOn), formatTime(state.LastRemoteDeletionOn),
			}}
			return render(cmd.OutOrStdout(), []string{"TYPE", "COMPANY", "USER", "DOWNLOADED", "MODIFIED", "DELETIONS"}, rows, state)
		}),
	}
	cmd.Flags().BoolVar(&companyScope, "company-scope", false, "the type is partitioned by company")
	cmd.Flags().BoolVar(&userScope, "user-scope", false, "the type is partitioned by user")
	return cmd
}

func (a *App) newValidityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validity <entity-type-id> <entity-id>",
		Short: "Show the stored validation result of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: a.withLocal(func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			result, err := a.local.States.GetValidationResult(cmd.Context(), sess, repository.Meta{EntityTypeId: args[0]}, args[1])
			if err != nil {
				return err
			}
			out := struct {
				Validity string `json:"validity"`
				Issues   any    `json:"issues,omitempty"`
			}{Validity: result.Validity.String()}
			if len(result.Issues) > 0 {
				out.Issues = result.Issues
			}
			rows := [][]string{{args[1], out.Validity, string(result.Issues)}}
			return render(cmd.OutOrStdout(), []string{"ENTITY", "VALIDITY", "ISSUES"}, rows, out)
		}),
	}
}

func (a *App) newAckCommand() *cobra.Command {
	var put bool
	cmd := &cobra.Command{
		Use:   "ack <entity-type-id> <entity-id>...",
		Short: "Mark entities as acknowledged by the remote authority",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.withLocal(func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			meta := repository.Meta{EntityTypeId: args[0]}
			now := time.Now().UTC()
			if put {
				err = a.local.States.MarkAsRemotelyPut(cmd.Context(), sess, meta, args[1:], now)
			} else {
				err = a.local.States.MarkAsRemotelyPatched(cmd.Context(), sess, meta, args[1:], now)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "acknowledged %d entities\n", len(args)-1)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&put, "put", false, "acknowledge a full replace instead of the patch set")
	return cmd
}

func (a *App) newWipeCommand() *cobra.Command {
	var (
		tables []string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every row of the given entity tables and all sync bookkeeping",
		Args:  cobra.NoArgs,
		RunE: a.withLocal(func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := a.confirm(cmd, "Delete all local data?")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("aborted")
				}
			}
			for _, name := range tables {
				if err := localdb.RegisterTable(cmd.Context(), a.local, name); err != nil {
					return err
				}
			}
			if err := a.local.Container.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "local data wiped")
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&tables, "table", nil, "entity table to clear (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
