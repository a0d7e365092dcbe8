package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/orgdiag/internal/company"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Register and inspect company profiles",
}

var companyAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a company or rename an existing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = args[0]
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		repo := st.Companies()
		c, err := repo.FindByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if c == nil {
			c = &company.Company{ID: args[0]}
		}
		c.Name = name
		if err := repo.Save(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Company %s saved.\n", c.ID)
		return nil
	},
}

var companyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a company's associations and diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		c, err := st.Companies().FindByID(ctx, args[0])
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("company %s not found", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:    %s\n", c.ID)
		fmt.Fprintf(out, "Name:  %s\n", c.Name)

		fmt.Fprintln(out, "\nCategories:")
		if len(c.Categories) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, a := range c.Categories {
			fmt.Fprintf(out, "  %-28s %s\n", a.Category, a.Reason)
		}

		fmt.Fprintln(out, "\nTracks:")
		if len(c.Tracks) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, a := range c.Tracks {
			fmt.Fprintf(out, "  %-38s %-12s %s\n", a.TrackID, a.Origin, a.Reason)
		}

		records, err := st.Diagnostics().ListByCompany(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nDiagnostics:")
		if len(records) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, r := range records {
			fmt.Fprintf(out, "  %s  %s  %d problems, %d recommended tracks\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
				len(r.Data.Problems), len(r.Data.RecommendedTracks))
		}
		return nil
	},
}

func init() {
	companyAddCmd.Flags().String("name", "", "Display name (defaults to the id)")

	companyCmd.AddCommand(companyAddCmd)
	companyCmd.AddCommand(companyShowCmd)
}
