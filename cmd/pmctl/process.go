package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
)

var processPhotosCmd = &cobra.Command{
	Use:   "process-photos",
	Short: "Build derivatives and encode faces for photos",
	Long: `Run the photo pipeline directly, outside the task queue.

By default only photos whose faces were never encoded are processed.

Examples:
  # Photos still missing face data
  pmctl process-photos

  # Everything currently for sale
  pmctl process-photos --all --status active

  # Retry failed photos with fewer workers
  pmctl process-photos --all --status error --concurrency 2`,
	RunE: runProcessPhotos,
}

func init() {
	rootCmd.AddCommand(processPhotosCmd)

	processPhotosCmd.Flags().Bool("all", false, "Include photos that were already processed")
	processPhotosCmd.Flags().String("status", "", "Only photos in this status")
	processPhotosCmd.Flags().Int("concurrency", 4, "Number of parallel workers")
}

func photoQuery(all bool, status string) (storage.PhotoQuery, error) {
	q := storage.PhotoQuery{UnprocessedOnly: !all}
	if status == "" {
		return q, nil
	}
	s := models.PhotoStatus(status)
	switch s {
	case models.PhotoStatusProcessing, models.PhotoStatusActive, models.PhotoStatusSold,
		models.PhotoStatusHidden, models.PhotoStatusError:
		q.Status = &s
		return q, nil
	default:
		return q, fmt.Errorf("unknown photo status %q", status)
	}
}

func runProcessPhotos(cmd *cobra.Command, args []string) error {
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	q, err := photoQuery(mustGetBool(cmd, "all"), mustGetString(cmd, "status"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.services.Encoder.Available() {
		fmt.Println("Face encoder unavailable: derivatives will be built, faces will not be encoded.")
	}

	ids, err := e.db.ListPhotoIDs(ctx, q)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No photos to process.")
		return nil
	}

	startTime := time.Now()
	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Processing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	counts := processPhotos(ctx, ids, concurrency, e.services.Pipeline.ProcessPhoto, func() { _ = bar.Add(1) })
	_ = bar.Finish()

	fmt.Printf("\nProcessed %d, skipped %d, failed %d in %s\n",
		counts.processed, counts.skipped, counts.failed, time.Since(startTime).Round(time.Second))
	if counts.failed > 0 {
		return fmt.Errorf("%d photos failed", counts.failed)
	}
	return nil
}

type processCounts struct {
	processed, skipped, failed int64
}

// processPhotos runs process over ids with at most concurrency calls in
// flight. done is called once per photo.
func processPhotos(ctx context.Context, ids []uuid.UUID, concurrency int,
	process func(context.Context, uuid.UUID) (bool, error), done func()) processCounts {
	var counts processCounts
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup

	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer done()

			did, err := process(ctx, id)
			switch {
			case err != nil:
				atomic.AddInt64(&counts.failed, 1)
				slog.Debug("process photo", "photo_id", id, "error", err)
			case did:
				atomic.AddInt64(&counts.processed, 1)
			default:
				atomic.AddInt64(&counts.skipped, 1)
			}
		}()
	}
	wg.Wait()
	return counts
}
