package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/photomarket/internal/config"
)

// NewEncoder loads the ONNX models when vision is enabled. Any failure leaves
// the process with an Unavailable encoder rather than refusing to start.
// The returned close func releases the runtime.
func NewEncoder(cfg config.VisionConfig) (FaceEncoder, func()) {
	noop := func() {}
	if !cfg.Enabled {
		slog.Info("face encoder disabled")
		return Unavailable{}, noop
	}

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, face matching unavailable", "error", err)
		return Unavailable{}, noop
	}

	enc, err := NewONNXEncoder(cfg)
	if err != nil {
		slog.Warn("face encoder init failed, face matching unavailable", "error", err)
		_ = ort.DestroyEnvironment()
		return Unavailable{}, noop
	}

	slog.Info("face encoder ready", "models_dir", cfg.ModelsDir)
	return WithTimeout(enc, cfg.EncoderTimeout), func() {
		enc.Close()
		_ = ort.DestroyEnvironment()
	}
}

// NewONNXEncoder loads the RetinaFace detector and ArcFace embedder from cfg.ModelsDir.
func NewONNXEncoder(cfg config.VisionConfig) (*ONNXEncoder, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &ONNXEncoder{detector: det, embedder: emb}, nil
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
