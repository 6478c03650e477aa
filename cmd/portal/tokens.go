package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-phone-auth"
)

func newTokensCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token utilities",
	}

	var userID string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access/refresh pair for an active user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a uuid: %w", err)
			}

			p, err := loadPortal(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			user, err := p.repo.Identities().FindByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !user.Active {
				return auth.ErrIdentityInactive
			}

			pair, err := p.tokens.IssuePair(user.ID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}
