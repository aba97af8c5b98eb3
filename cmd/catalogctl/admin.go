package main

import (
	"context"
	"fmt"

	"storefront/internal/domain"

	"github.com/spf13/cobra"
)

type identityCreator interface {
	CreateIdentity(ctx context.Context, in domain.SignupInput) (*domain.Identity, error)
}

type identityOpener func(ctx context.Context) (identityCreator, func(), error)

func newAdminCmd(open identityOpener) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var in domain.SignupInput
	var role string

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		Long: `Create an administrator account directly in the database.

This is the only way to create a superadmin; the signup endpoint always
creates plain admins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = domain.Role(role)
			if !in.Role.Valid() {
				return fmt.Errorf("invalid role %q: must be %q or %q", role, domain.RoleAdmin, domain.RoleSuperAdmin)
			}

			identities, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			identity, err := identities.CreateIdentity(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", role, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", identity.Role, identity.Email, identity.ID)
			return nil
		},
	}

	createCmd.Flags().StringVar(&in.Name, "name", "", "display name")
	createCmd.Flags().StringVar(&in.Email, "email", "", "login email")
	createCmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	createCmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "admin or superadmin")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(createCmd)
	return adminCmd
}
