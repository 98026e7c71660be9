package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/your-org/photomarket/internal/models"
)

func TestNMS(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.7},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.8},
	}

	kept := nms(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("nms kept %d boxes, want 2", len(kept))
	}
	if kept[0].Confidence != 0.9 || kept[1].Confidence != 0.8 {
		t.Errorf("nms kept confidences %v, %v; want 0.9, 0.8", kept[0].Confidence, kept[1].Confidence)
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]float32
		want float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 1.0 / 3.0},
		{"degenerate", [4]float32{0, 0, 0, 0}, [4]float32{0, 0, 0, 0}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := iou(tc.a, tc.b); math.Abs(float64(got-tc.want)) > 1e-5 {
				t.Errorf("iou(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestDetectionBox(t *testing.T) {
	d := Detection{BBox: [4]float32{10.4, 20.6, 110.5, 220.2}}
	want := models.BoundingBox{Top: 21, Right: 111, Bottom: 220, Left: 10}
	if got := d.Box(); got != want {
		t.Errorf("Box() = %+v, want %+v", got, want)
	}
}

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	crop := cropFace(img, [4]float32{50, 20, 150, 80})
	if crop == nil {
		t.Fatal("cropFace returned nil")
	}
	if b := crop.Bounds(); b.Dx() != 120 || b.Dy() != 72 {
		t.Errorf("crop size = %dx%d, want 120x72", b.Dx(), b.Dy())
	}

	edge := cropFace(img, [4]float32{-20, -20, 40, 40})
	if b := edge.Bounds(); b.Dx() != 44 || b.Dy() != 44 {
		t.Errorf("edge crop size = %dx%d, want 44x44", b.Dx(), b.Dy())
	}

	if cropFace(img, [4]float32{300, 300, 400, 400}) != nil {
		t.Error("cropFace outside the image should return nil")
	}
}

func TestToCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 0, 127, 255})
		}
	}

	data := toCHW(img, 2, 2, [3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	if len(data) != 12 {
		t.Fatalf("len = %d, want 12", len(data))
	}
	for i, want := range []float32{255, 0, 127} {
		if got := data[i*4]; math.Abs(float64(got-want)) > 1 {
			t.Errorf("plane %d = %v, want %v", i, got, want)
		}
	}
}

type slowEncoder struct {
	delay time.Duration
	faces []models.DetectedFace
}

func (s slowEncoder) Available() bool { return true }

func (s slowEncoder) Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error) {
	select {
	case <-time.After(s.delay):
		return s.faces, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestWithTimeout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	fast := WithTimeout(slowEncoder{delay: time.Millisecond, faces: make([]models.DetectedFace, 2)}, time.Second)
	faces, err := fast.Detect(context.Background(), img)
	if err != nil || len(faces) != 2 {
		t.Errorf("fast Detect = (%d faces, %v), want (2, nil)", len(faces), err)
	}

	slow := WithTimeout(slowEncoder{delay: time.Second}, 10*time.Millisecond)
	if _, err := slow.Detect(context.Background(), img); !errors.Is(err, ErrEncoderTimeout) {
		t.Errorf("slow Detect error = %v, want ErrEncoderTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.Detect(ctx, img); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Detect error = %v, want context.Canceled", err)
	}
}

// gateEncoder blocks every call until release is closed, ignoring ctx like a
// hung inference would.
type gateEncoder struct {
	started chan struct{}
	release chan struct{}
}

func (g gateEncoder) Available() bool { return true }

func (g gateEncoder) Detect(ctx context.Context, img image.Image) ([]models.DetectedFace, error) {
	g.started <- struct{}{}
	<-g.release
	return nil, nil
}

func TestWithTimeoutQueueing(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	t.Run("WaitNotCounted", func(t *testing.T) {
		enc := WithTimeout(slowEncoder{delay: 80 * time.Millisecond, faces: make([]models.DetectedFace, 1)}, 130*time.Millisecond)
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, err := enc.Detect(context.Background(), img)
				errs <- err
			}()
		}
		for i := 0; i < 2; i++ {
			if err := <-errs; err != nil {
				t.Errorf("queued Detect error = %v, want nil", err)
			}
		}
	})

	t.Run("BusyIsNotTimeout", func(t *testing.T) {
		g := gateEncoder{started: make(chan struct{}, 1), release: make(chan struct{})}
		enc := WithTimeout(g, 20*time.Millisecond)

		first := make(chan error, 1)
		go func() {
			_, err := enc.Detect(context.Background(), img)
			first <- err
		}()
		<-g.started

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		defer cancel()
		_, err := enc.Detect(ctx, img)
		if !errors.Is(err, ErrEncoderBusy) || errors.Is(err, ErrEncoderTimeout) {
			t.Errorf("waiting Detect error = %v, want ErrEncoderBusy", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("waiting Detect error = %v, want it to wrap the caller's deadline", err)
		}

		if err := <-first; !errors.Is(err, ErrEncoderTimeout) {
			t.Errorf("hung Detect error = %v, want ErrEncoderTimeout", err)
		}
		close(g.release)
	})
}

func TestUnavailable(t *testing.T) {
	var enc FaceEncoder = Unavailable{}
	if enc.Available() {
		t.Error("Unavailable reports available")
	}
	if _, err := enc.Detect(context.Background(), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Detect error = %v, want ErrUnavailable", err)
	}
	if WithTimeout(enc, time.Second).Available() {
		t.Error("timeout wrapper must keep the availability flag")
	}
}

func TestUnitVector(t *testing.T) {
	got, err := unitVector([]float32{3, 0, 4})
	if err != nil {
		t.Fatalf("unitVector() error = %v", err)
	}
	want := []float32{0.6, 0, 0.8}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("unitVector()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := unitVector([]float32{0, 0, 0}); !errors.Is(err, errDegenerateEmbedding) {
		t.Errorf("unitVector(zero) error = %v, want %v", err, errDegenerateEmbedding)
	}
}
