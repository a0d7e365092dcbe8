package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abhisek/orgdiag/internal/catalog"
	"github.com/abhisek/orgdiag/internal/prompt"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the learning-track catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import or update tracks from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		tracks, err := catalog.LoadSeed(f)
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		repo := st.Catalog()
		for i := range tracks {
			if err := repo.Upsert(cmd.Context(), &tracks[i]); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tracks.\n", len(tracks))
		return nil
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		tracks, err := st.Catalog().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tracks registered.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCATEGORY\tLEVEL\tDURATION\tACTIVE\tID")
		for _, t := range tracks {
			active := "yes"
			if !t.Active {
				active = "no"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.Name, t.Category, t.Level, t.Duration, active, t.ID)
		}
		return w.Flush()
	},
}

var catalogPromptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the interview instruction prompt for the current catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		text, err := prompt.NewAssembler(st.Catalog()).Build(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogPromptCmd)
}
