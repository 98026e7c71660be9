package vision

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/observability"
)

// ONNXEncoder runs detection then embedding for every face found.
// ONNX sessions share tensors, so calls are serialized.
type ONNXEncoder struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
}

func (e *ONNXEncoder) Available() bool { return true }

func (e *ONNXEncoder) Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	detW, detH := e.detector.InputSize()

	start := time.Now()
	detections, err := e.detector.Detect(toCHW(img, detW, detH, detectionMean, detectionStd), b.Dx(), b.Dy())
	observability.EncoderDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	embW, embH := e.embedder.InputSize()
	faces := make([]models.DetectedFace, 0, len(detections))
	for _, d := range detections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := cropFace(img, d.BBox)
		if crop == nil {
			continue
		}

		start = time.Now()
		embedding, err := e.embedder.Extract(toCHW(crop, embW, embH, embeddingMean, embeddingStd))
		observability.EncoderDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}

		faces = append(faces, models.DetectedFace{
			Box:        d.Box(),
			Embedding:  embedding,
			Confidence: d.Confidence,
		})
	}
	return faces, nil
}

// Close releases all ONNX sessions.
func (e *ONNXEncoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
