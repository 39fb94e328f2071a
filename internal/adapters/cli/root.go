// Package cli implements the appraisalctl operator commands.
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
)

// TokenIssuer signs API tokens for existing users.
type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
}

// Deps carries what the commands need. A nil field disables the commands
// that depend on it with a clear error.
type Deps struct {
	Migrate func(ctx context.Context) error
	Reports ports.ReportService
	Preview ports.ValuationPreview
	Users   ports.UserRepository
	Audit   ports.AuditReader
	Tokens  TokenIssuer
	NewID   func() string
	Now     func() time.Time
}

var errUnavailable = errors.New("not available with the current configuration")

func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cmd := &cobra.Command{
		Use:           "appraisalctl",
		Short:         "Operator tools for the collateral appraisal service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newMigrateCmd(deps),
		newRecalculateCmd(deps),
		newStandardsCmd(deps),
		newTokenCmd(deps),
		newUsersCmd(deps),
		newAuditCmd(deps),
	)
	return cmd
}
