package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

var deleteID int64

var deleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"remove"},
	Short:   "Delete a registered admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		if err := store.Remove(deleteID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("admin ID %d not found", deleteID)
			}
			return err
		}

		fmt.Printf("Admin ID %d deleted.\n", deleteID)
		return nil
	},
}

func init() {
	deleteCmd.Flags().Int64Var(&deleteID, "admin-id", 0, "Admin ID to delete (required)")
	_ = deleteCmd.MarkFlagRequired("admin-id")
	rootCmd.AddCommand(deleteCmd)
}
