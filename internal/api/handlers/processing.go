package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/queue"
)

// Processing runs pipeline work inside the request or hands it to the task
// queue. With a nil Tasks publisher everything runs inline.
type Processing struct {
	Pipeline *pipeline.Pipeline
	Tasks    queue.TaskPublisher
}

func (p Processing) async() bool { return p.Tasks != nil }

// Photo processes or enqueues one uploaded photo. Inline failures are already
// recorded on the photo, so only enqueue errors are returned.
func (p Processing) Photo(ctx context.Context, photoID uuid.UUID) error {
	if p.async() {
		return p.Tasks.PublishTask(ctx, models.NewTask(models.TaskProcessPhoto, photoID))
	}
	_, err := p.Pipeline.ProcessPhoto(ctx, photoID)
	return err
}

// Selfie processes or enqueues a client's selfie and reports matched photos
// when it ran inline.
func (p Processing) Selfie(ctx context.Context, clientID uuid.UUID) (int, error) {
	if p.async() {
		return 0, p.Tasks.PublishTask(ctx, models.NewTask(models.TaskProcessSelfie, clientID))
	}
	return p.Pipeline.ProcessSelfie(ctx, clientID)
}
