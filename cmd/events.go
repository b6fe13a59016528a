package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a5c-ai/gitagent/internal/event"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the known event types",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range event.KnownTypes() {
			fmt.Println(t)
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
