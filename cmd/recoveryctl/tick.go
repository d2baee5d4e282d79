package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one abandoned-cart scan synchronously",
	Run: func(cmd *cobra.Command, args []string) {
		serviceURL := viper.GetString("service_url")

		resp, err := http.Post(serviceURL+"/scanner/run", "application/json", nil)
		if err != nil {
			fmt.Printf("Error connecting to service: %v\n", err)
			return
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Tick failed (%d): %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
			return
		}
		fmt.Println(strings.TrimSpace(string(body)))
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}
