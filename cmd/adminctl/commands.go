package main

import (
	"context"
	"fmt"

	"adreel/contexts/campaign-lifecycle/campaign-service/application/commands"
	"adreel/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

// withAdmin opens the platform for one command and closes it afterwards.
func withAdmin(cmd *cobra.Command, run func(ctx context.Context, app *bootstrap.AdminApp, actor string) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor, err := cmd.Flags().GetString("actor")
	if err != nil {
		return err
	}
	app, err := bootstrap.BuildAdmin(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	defer func() {
		_ = app.Close()
	}()
	return run(ctx, app, actor)
}

func refundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund [payment_id]",
		Short: "Record a refund for a PAID payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *bootstrap.AdminApp, actor string) error {
				payment, err := app.Platform.Payments.Service.Refund(ctx, actor, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payment %s is %s\n", payment.PaymentID, payment.Status)
				return nil
			})
		},
	}
}

func campaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Drive campaign transitions owned by the ads sync",
	}
	cmd.AddCommand(campaignStatusCmd("mark-running [campaign_id]", "Move a QUEUED campaign to RUNNING", commands.StatusActionMarkRunning))
	cmd.AddCommand(campaignStatusCmd("cancel [campaign_id]", "Cancel a QUEUED campaign", commands.StatusActionCancel))
	cmd.AddCommand(campaignStatusCmd("end [campaign_id]", "End a RUNNING or PAUSED campaign", commands.StatusActionEnd))
	return cmd
}

func campaignStatusCmd(use string, short string, action commands.ChangeStatusAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *bootstrap.AdminApp, _ string) error {
				result, err := app.Platform.Campaigns.Status.Execute(ctx, commands.ChangeStatusCommand{
					CampaignID: args[0],
					Action:     action,
				})
				if err != nil {
					return err
				}
				if !result.Applied {
					fmt.Fprintf(cmd.OutOrStdout(), "campaign %s already %s, nothing to do\n", result.Campaign.CampaignID, result.Campaign.Status)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "campaign %s: %s -> %s\n", result.Campaign.CampaignID, result.FromStatus, result.Campaign.Status)
				return nil
			})
		},
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage client accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "open [user_id]",
		Short: "Open a client account so the user can create campaigns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *bootstrap.AdminApp, _ string) error {
				account, err := app.Platform.Links.Service.EnsureClientAccount(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s account %s\n", account.UserID, account.ClientAccountID)
				return nil
			})
		},
	})
	return cmd
}

func linkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Inspect and reconcile Google Ads account links",
	}

	reconcile := &cobra.Command{
		Use:   "reconcile [user_id]",
		Short: "Re-read one user's link status from Google Ads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *bootstrap.AdminApp, _ string) error {
				account, err := app.Platform.Links.Service.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s customer %s status %s\n", account.UserID, account.GoogleCustomerID, account.LinkStatus)
				return nil
			})
		},
	}

	poll := &cobra.Command{
		Use:   "poll",
		Short: "Run one pass of the pending link poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd, func(ctx context.Context, app *bootstrap.AdminApp, _ string) error {
				summary, err := app.Platform.Links.Poller.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked=%d changed=%d failed=%d\n", summary.Checked, summary.Changed, summary.Failed)
				return nil
			})
		},
	}

	cmd.AddCommand(reconcile, poll)
	return cmd
}
