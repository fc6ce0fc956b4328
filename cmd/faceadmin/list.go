package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered admins",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		printAdmins(os.Stdout, store.List())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printAdmins(out io.Writer, admins []storage.Summary) {
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins registered.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tREGISTERED")
	fmt.Fprintln(w, "--\t----\t-------\t----------")
	for _, a := range admins {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", a.ID, a.Name, a.NumSamples, a.RegisteredAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nTotal: %d admin(s)\n", len(admins))
}
