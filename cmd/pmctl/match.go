package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/photomarket/internal/matching"
)

var matchFacesCmd = &cobra.Command{
	Use:   "match-faces",
	Short: "Match every processed client against every photo face",
	Long: `Run a full rematch in this process.

Without --reassign only unmatched faces are filled in. With --reassign every
face is recomputed and may move to a closer client or lose its match.`,
	RunE: runMatchFaces,
}

func init() {
	rootCmd.AddCommand(matchFacesCmd)

	matchFacesCmd.Flags().Bool("reassign", false, "Recompute faces that already have a match")
}

func runMatchFaces(cmd *cobra.Command, args []string) error {
	reassign := mustGetBool(cmd, "reassign")

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	startTime := time.Now()
	stats, err := rematch(ctx, e.services.Index, reassign)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d faces: %d matched, %d reassigned, %d cleared (%s)\n",
		stats.Scanned, stats.Matched, stats.Reassigned, stats.Cleared,
		time.Since(startTime).Round(time.Millisecond))
	return nil
}

type rematcher interface {
	RematchAll(ctx context.Context, opts matching.RematchOptions) (matching.RematchStats, error)
}

func rematch(ctx context.Context, r rematcher, reassign bool) (matching.RematchStats, error) {
	stats, err := r.RematchAll(ctx, matching.RematchOptions{Reassign: reassign})
	if errors.Is(err, matching.ErrRematchRunning) {
		return stats, errors.New("another rematch is running, try again later")
	}
	if err != nil {
		return stats, fmt.Errorf("rematch: %w", err)
	}
	return stats, nil
}
