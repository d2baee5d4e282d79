package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sapliy/cart-recovery/internal/reminder"
)

var (
	smsTo   string
	smsBody string
)

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Send a test SMS through the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		sid := os.Getenv("TWILIO_ACCOUNT_SID")
		token := os.Getenv("TWILIO_AUTH_TOKEN")
		from := os.Getenv("TWILIO_FROM_NUMBER")
		if sid == "" || token == "" || from == "" {
			fmt.Println("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER must be set")
			return
		}

		driver := reminder.NewTwilioSMSDriver(sid, token, from)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		receipt, err := driver.Send(ctx, smsTo, smsBody)
		if err != nil {
			fmt.Printf("Send failed: %v\n", err)
			return
		}
		fmt.Printf("Sent. Receipt: %s\n", receipt)
	},
}

func init() {
	smsCmd.Flags().StringVar(&smsTo, "to", "", "destination phone number (required)")
	smsCmd.Flags().StringVar(&smsBody, "body", "Test message from cart-recovery", "message body")
	smsCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(smsCmd)
}
