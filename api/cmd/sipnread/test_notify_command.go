package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sipnread/api/internal/models"
	"sipnread/api/internal/notify"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the tassologist chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			n, err := notify.New(cfg.Telegram.Token, cfg.Telegram.ChatID, ctx.logger())
			if err != nil {
				return err
			}
			if _, ok := n.(notify.Noop); ok {
				return errors.New("telegram is not configured (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID)")
			}
			pr := &models.PersonalizationRequest{
				ID:           "test",
				ReadingID:    "test",
				UserQuestion: "Is this thing on?",
				PriceCents:   cfg.Pricing.PriceCents,
				Currency:     cfg.Pricing.Currency,
				RequestedAt:  time.Now().UTC(),
			}
			if err := n.RequestSubmitted(cmd.Context(), pr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
