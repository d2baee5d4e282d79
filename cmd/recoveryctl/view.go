package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	viewEmail       string
	viewProductID   string
	viewProductName string
	viewTimestamp   string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Record a product-view event",
	Run: func(cmd *cobra.Command, args []string) {
		serviceURL := viper.GetString("service_url")

		payload := map[string]string{
			"product_id":   viewProductID,
			"product_name": viewProductName,
		}
		if viewEmail != "" {
			payload["user_email"] = viewEmail
		}
		if viewTimestamp != "" {
			payload["timestamp"] = viewTimestamp
		}
		body, _ := json.Marshal(payload)

		resp, err := http.Post(serviceURL+"/track/view", "application/json", bytes.NewBuffer(body))
		if err != nil {
			fmt.Printf("Error connecting to service: %v\n", err)
			return
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		fmt.Printf("%d: %s\n", resp.StatusCode, strings.TrimSpace(string(respBody)))
	},
}

func init() {
	viewCmd.Flags().StringVar(&viewEmail, "email", "", "user email (omit for an anonymous view)")
	viewCmd.Flags().StringVar(&viewProductID, "product-id", "", "product identifier (required)")
	viewCmd.Flags().StringVar(&viewProductName, "product-name", "", "product display name (required)")
	viewCmd.Flags().StringVar(&viewTimestamp, "timestamp", "", "RFC 3339 view timestamp (defaults to now)")
	viewCmd.MarkFlagRequired("product-id")
	viewCmd.MarkFlagRequired("product-name")
	rootCmd.AddCommand(viewCmd)
}
