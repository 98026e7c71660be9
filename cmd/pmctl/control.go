package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/photomarket/internal/queue"
)

var controlCmd = &cobra.Command{
	Use:       "control <sweep|rematch>",
	Short:     "Send a command to the running scheduler",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{queue.CommandSweep, queue.CommandRematch},
	RunE:      runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)

	controlCmd.Flags().Bool("reassign", false, "For rematch: recompute faces that already have a match")
}

func runControl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer producer.Close()

	c := queue.Control{Command: args[0], Reassign: mustGetBool(cmd, "reassign")}
	if err := producer.PublishControl(c); err != nil {
		return err
	}
	fmt.Printf("Sent %s\n", c.Command)
	return nil
}
