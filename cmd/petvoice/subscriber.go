package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/petvoice/subscriptions/modules/billing"
	"github.com/petvoice/subscriptions/pkg/subscription"
)

var (
	subscriberUserID string
	subscriberEmail  string
)

var subscriberCmd = &cobra.Command{
	Use:   "subscriber",
	Short: "Inspect or remove an individual subscriber",
}

var subscriberCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile one subscriber with the billing provider",
	Long: `Reconcile one subscriber against the billing provider and print the result.

Examples:
  petvoice subscriber check --user-id=6f1c2a57-7c1e-4f4e-9d59-3f8c7b1b2a10 --email=owner@example.com`,
	Args: cobra.NoArgs,
	RunE: runSubscriberCheck,
}

var subscriberDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a subscriber record as part of account deletion",
	Args:  cobra.NoArgs,
	RunE:  runSubscriberDelete,
}

func init() {
	subscriberCmd.PersistentFlags().StringVar(&subscriberUserID, "user-id", "", "user id (uuid)")
	_ = subscriberCmd.MarkPersistentFlagRequired("user-id")
	subscriberCheckCmd.Flags().StringVar(&subscriberEmail, "email", "", "billing email of the user")
	_ = subscriberCheckCmd.MarkFlagRequired("email")

	subscriberCmd.AddCommand(subscriberCheckCmd, subscriberDeleteCmd)
}

func parseUserID() (uuid.UUID, error) {
	id, err := uuid.Parse(subscriberUserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user-id: %w", err)
	}
	return id, nil
}

func runSubscriberCheck(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserID()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.service.Check(cmd.Context(), subscription.Subscriber{UserID: userID, Email: subscriberEmail})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(billing.CheckResponse{Status: status, Blocked: subscription.IsBlocked(status)})
}

func runSubscriberDelete(cmd *cobra.Command, _ []string) error {
	userID, err := parseUserID()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteSubscriber(cmd.Context(), userID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted subscriber %s\n", userID)
	return nil
}
