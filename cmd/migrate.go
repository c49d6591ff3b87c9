package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage MongoDB indexes and collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			changed, err := a.store.MigrateUp()
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("no change")
				return nil
			}
			fmt.Println("migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.MigrateDown(steps); err != nil {
				return err
			}
			fmt.Printf("rolled back %d step(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			v, dirty, err := a.store.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	})
	return cmd
}
