package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"prontoapp/backend/internal/auth"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/marketplace"
	"prontoapp/backend/internal/notify"
	"prontoapp/backend/internal/roles"
	"prontoapp/backend/internal/storage"
)

type storageOpener func() (*storage.Service, error)

func newRootCmd(cfg config.Config, open storageOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "ProntoApp operator commands",
		SilenceUsage: true,
	}

	root.AddCommand(
		transitionCmd("complete", "Mark an accepted request as completed", open,
			func(s *marketplace.RequestStore) func(context.Context, string) error { return s.CompleteRequest }),
		transitionCmd("cancel", "Cancel a pending or in-progress request", open,
			func(s *marketplace.RequestStore) func(context.Context, string) error { return s.CancelRequest }),
		roleCmd(open),
		tokenCmd(cfg),
		quotesCmd(open),
	)
	return root
}

func transitionCmd(
	name, short string,
	open storageOpener,
	pick func(*marketplace.RequestStore) func(context.Context, string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			store := marketplace.NewRequestStore(st)
			if err := pick(store)(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("%s %s: %w", name, args[0], err)
			}
			req, err := store.GetRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ request %s is now %s\n", req.ID, color.GreenString(string(req.Status)))
			return nil
		},
	}
}

func roleCmd(open storageOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "role <email>",
		Short: "Show which side of the marketplace an email belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			id, err := roles.NewResolver(nil, st).ResolveEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s", id.Email, color.CyanString(string(id.Role)))
			if ref := id.ID(); ref != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\t%s (%s)", ref, id.DisplayName())
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func tokenCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Mint a development identity token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
			token, expires, err := manager.GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("expires %s", expires.Format("2006-01-02 15:04 MST")))
			return nil
		},
	}
	cmd.Flags().Duration("ttl", config.DevTokenTTL, "token lifetime")
	return cmd
}

func quotesCmd(open storageOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "quotes <request-id>",
		Short: "List the live quotes of a request, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open()
			if err != nil {
				return err
			}
			quotes, err := marketplace.NewRequestStore(st).ListQuotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(quotes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no quotes")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUOTE\tPROVIDER\tAMOUNT\tAVAILABILITY\tCREATED")
			for _, q := range quotes {
				id := q.ID
				if q.Selected {
					id = color.GreenString(id + " ✓")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					id, q.ProviderID, notify.FormatBudget(q.Amount), q.Availability,
					q.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
