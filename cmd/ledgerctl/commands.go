package main

import (
	"encoding/json"
	"fmt"
	"time"

	"stocktransfer-backend/internal/app"
	"stocktransfer-backend/internal/domain"
	"stocktransfer-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type opener func() (*app.Services, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tool for the share ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("tenant", "", "tenant id the action applies to")
	root.PersistentFlags().String("actor", "operator:ledgerctl", "name recorded in the audit log")

	root.AddCommand(migrateCmd(open))
	root.AddCommand(holdingsCmd(open))
	root.AddCommand(issuancesCmd(open))
	root.AddCommand(transfersCmd(open))
	return root
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger tables and their guards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := open()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(svcs.DB.WithContext(cmd.Context())); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func holdingsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "holdings", Short: "Holding actions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "release [holding-id]",
		Short: "Release a HELD holding to ACTIVE and notify the shareholder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, actor, err := scope(cmd, true)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid holding id: %w", err)
			}
			svcs, err := open()
			if err != nil {
				return err
			}
			h, err := svcs.Holdings.Release(cmd.Context(), tenant, id, actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, h)
		},
	})
	return cmd
}

func issuancesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "issuances", Short: "Issuance request actions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "expired",
		Short: "List paid issuance requests still unpaid after their deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _, err := scope(cmd, false)
			if err != nil {
				return err
			}
			svcs, err := open()
			if err != nil {
				return err
			}
			reqs, err := svcs.Issuance.ListExpired(cmd.Context(), tenant, time.Now())
			if err != nil {
				return err
			}
			if reqs == nil {
				reqs = []domain.ShareIssuanceRequest{}
			}
			return printJSON(cmd, reqs)
		},
	})
	return cmd
}

func transfersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{Use: "transfers", Short: "Transfer actions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "execute [transfer-id]",
		Short: "Execute an APPROVED transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, actor, err := scope(cmd, true)
			if err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id: %w", err)
			}
			svcs, err := open()
			if err != nil {
				return err
			}
			res, err := svcs.Transfers.Execute(cmd.Context(), tenant, id, actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	})
	return cmd
}

// scope reads --tenant and --actor. A missing tenant is an error only when required.
func scope(cmd *cobra.Command, tenantRequired bool) (uuid.UUID, string, error) {
	raw, _ := cmd.Flags().GetString("tenant")
	actor, _ := cmd.Flags().GetString("actor")
	if raw == "" {
		if tenantRequired {
			return uuid.Nil, "", fmt.Errorf("--tenant is required")
		}
		return uuid.Nil, actor, nil
	}
	tenant, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid --tenant: %w", err)
	}
	return tenant, actor, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
