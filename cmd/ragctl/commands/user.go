package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"tenantrag/internal/app"
)

func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage tenant staff accounts",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

// user create works even when self registration is disabled.
func newUserCreateCmd() *cobra.Command {
	var in app.RegisterInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.AuthService().CreateUser(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("user create: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) created for tenant %s\n", res.User.ID, res.User.Email, res.User.TenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&in.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&in.TenantID, "tenant", "", "Tenant id the account belongs to")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
