package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"furnistore/services"
)

func createAdminCmd() *cobra.Command {
	var in services.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long: `Create an admin account. The password is read from --password or, when
omitted, from the ADMIN_PASSWORD environment variable.

Examples:
  furnistore create-admin --name Ops --email ops@furnistore.local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			if in.Password == "" {
				return errors.New("a password is required (--password or ADMIN_PASSWORD)")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			accounts := services.NewAccounts(a.store.Users, a.cfg.JWTSecret, a.cfg.JWTTTL)
			user, err := accounts.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("admin %s created (%s)\n", user.Email, user.ID.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func relayOutboxCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "relay-outbox",
		Short: "Retry pending order confirmation emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.dispatcher().RelayPending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("sent %d, failed %d\n", res.Sent, res.Failed)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum messages to send")
	return cmd
}
