package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newOwnerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Owner role management",
	}

	var userID string
	promote := &cobra.Command{
		Use:   "promote",
		Short: "Grant the owner role to a user",
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

			user, err := p.users.PromoteOwner(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s roles: %s\n", user.ID, user.Roles)
			return err
		},
	}
	promote.Flags().StringVar(&userID, "user", "", "user id")
	_ = promote.MarkFlagRequired("user")

	cmd.AddCommand(promote)
	return cmd
}
