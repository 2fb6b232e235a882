package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tenantrag/internal/app"
	"tenantrag/internal/model"
)

func NewTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Provision and inspect tenants",
	}
	cmd.AddCommand(newTenantCreateCmd(), newTenantListCmd(), newTenantShowCmd())
	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var in app.TenantInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant and print its widget API key",
		Long: `Create a tenant. The widget API key is printed once; store it where the
embedding site can send it as X-API-Key.

Examples:
  ragctl tenant create --id acme --name "Acme Corp" --tone "warm and concise"
  ragctl tenant create --name "Globex" --page-quota 2000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			tenant, err := a.TenantService().Create(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("tenant create: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant:  %s\n", tenant.ID)
			fmt.Fprintf(out, "name:    %s\n", tenant.Name)
			fmt.Fprintf(out, "api key: %s\n", tenant.APIKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ID, "id", "", "Tenant id (default: generated uuid)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name used in the assistant's instructions")
	cmd.Flags().StringVar(&in.Tone, "tone", "", "Answer tone (default: the deployment tone)")
	cmd.Flags().StringVar(&in.Plan, "plan", "free", "Billing plan label")
	cmd.Flags().IntVar(&in.PageQuota, "page-quota", 0, "Total PDF pages allowed (0: deployment default)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			tenants, err := a.TenantService().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("tenant list: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPLAN\tPAGE QUOTA\tCREATED")
			for i := range tenants {
				t := &tenants[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Name, t.Plan, t.EffectivePageQuota(cfg.Upload.MaxPagesPerTenant), t.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func newTenantShowCmd() *cobra.Command {
	var showKey bool

	cmd := &cobra.Command{
		Use:   "show <tenant-id>",
		Short: "Show a tenant with its document usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			tenant, err := a.TenantService().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("tenant show: %w", err)
			}
			docs, err := a.DocumentService().List(ctx, tenant.ID)
			if err != nil {
				return fmt.Errorf("tenant show: %w", err)
			}

			pages := 0
			counts := map[model.DocumentStatus]int{}
			for _, d := range docs {
				pages += d.NumPages
				counts[d.Status]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant:     %s\n", tenant.ID)
			fmt.Fprintf(out, "name:       %s\n", tenant.Name)
			fmt.Fprintf(out, "tone:       %s\n", tenant.Tone)
			fmt.Fprintf(out, "plan:       %s\n", tenant.Plan)
			fmt.Fprintf(out, "pages:      %d / %d\n", pages, tenant.EffectivePageQuota(cfg.Upload.MaxPagesPerTenant))
			fmt.Fprintf(out, "documents:  %d (queued %d, vectorizing %d, completed %d, failed %d)\n",
				len(docs),
				counts[model.DocumentQueued],
				counts[model.DocumentVectorizing],
				counts[model.DocumentCompleted],
				counts[model.DocumentFailed],
			)
			if showKey {
				fmt.Fprintf(out, "api key:    %s\n", tenant.APIKey)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKey, "show-key", false, "Print the widget API key")
	return cmd
}
