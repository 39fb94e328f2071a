package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

func newMigrateCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Migrate == nil {
				return fmt.Errorf("migrate: %w", errUnavailable)
			}
			if err := deps.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newRecalculateCmd(deps Deps) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "recalculate [REPORT_ID...]",
		Short: "Recompute stored valuations with the current catalog and schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Reports == nil {
				return fmt.Errorf("recalculate: %w", errUnavailable)
			}
			if all == (len(args) > 0) {
				return errors.New("pass report ids or --all, not both")
			}
			ctx := cmd.Context()
			ids := args
			if all {
				reports, err := deps.Reports.List(ctx, domain.SystemActor, domain.ReportFilter{})
				if err != nil {
					return err
				}
				ids = make([]string, 0, len(reports))
				for _, r := range reports {
					ids = append(ids, r.ID)
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, id := range ids {
				report, err := deps.Reports.Recalculate(ctx, domain.SystemActor, id)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\tliquidation=%d\n", report.ID, report.ReportNumber, report.ValuationResult.LiquidationValue)
			}
			fmt.Fprintf(out, "recalculated %d of %d reports\n", len(ids)-failed, len(ids))
			if failed > 0 {
				return fmt.Errorf("%d reports failed to recalculate", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "recalculate every report")
	return cmd
}

func newStandardsCmd(deps Deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "standards",
		Short: "List the building standard catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Preview == nil {
				return fmt.Errorf("standards: %w", errUnavailable)
			}
			standards := deps.Preview.Standards()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(standards)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tFLOORS\tCATEGORY\tBASE RATE")
			for _, s := range standards {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", s.Code, s.Name, s.Floors, s.Category, s.BaseRate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newTokenCmd(deps Deps) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Users == nil || deps.Tokens == nil {
				return fmt.Errorf("token: %w", errUnavailable)
			}
			user, err := deps.Users.FindByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			token, expires, err := deps.Tokens.Issue(*user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format("2006-01-02T15:04:05Z"))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username to issue the token for")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newUsersCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts",
	}

	var username, fullName, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a staff account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Users == nil || deps.NewID == nil {
				return fmt.Errorf("users add: %w", errUnavailable)
			}
			r := domain.Role(strings.ToLower(strings.TrimSpace(role)))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q (appraiser, supervisor or admin)", role)
			}
			user := &domain.User{
				ID:        deps.NewID(),
				Username:  strings.TrimSpace(username),
				FullName:  strings.TrimSpace(fullName),
				Role:      r,
				CreatedAt: deps.Now().UTC(),
			}
			if user.Username == "" {
				return errors.New("username is required")
			}
			if err := deps.Users.Create(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Username, user.Role)
			return nil
		},
	}
	add.Flags().StringVar(&username, "username", "", "login name")
	add.Flags().StringVar(&fullName, "full-name", "", "display name")
	add.Flags().StringVar(&role, "role", string(domain.RoleAppraiser), "appraiser, supervisor or admin")
	_ = add.MarkFlagRequired("username")

	cmd.AddCommand(add)
	return cmd
}

func newAuditCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "audit REPORT_ID",
		Short: "Print the audit log of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Audit == nil {
				return fmt.Errorf("audit: %w", errUnavailable)
			}
			records, err := deps.Audit.ListByReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tACTOR\tROLE\tDESCRIPTION")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rec.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), rec.Action, rec.ActorID, rec.ActorRole, rec.Description)
			}
			return tw.Flush()
		},
	}
}
