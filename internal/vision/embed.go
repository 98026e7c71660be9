package vision

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/floats"
)

const embedInputSize = 112

var errDegenerateEmbedding = errors.New("embedding has zero norm")

// Embedder runs ArcFace (w600k_r50) on aligned face crops. Tensor names and
// the embedding width are read from the model instead of being assumed.
type Embedder struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	dim     int
}

func NewEmbedder(modelPath string) (*Embedder, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect embedder model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("embedder model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}
	outDims := outputs[0].Dimensions
	if len(outDims) != 2 || outDims[1] <= 0 {
		return nil, fmt.Errorf("embedder output shape %v, want [N, D]", outDims)
	}
	dim := outDims[1]

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, embedInputSize, embedInputSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, dim))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{session: session, input: input, output: output, dim: int(dim)}, nil
}

// Extract returns the unit-length embedding of a normalized CHW face crop.
func (e *Embedder) Extract(faceData []float32) ([]float32, error) {
	copy(e.input.GetData(), faceData)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}
	return unitVector(e.output.GetData()[:e.dim])
}

func (e *Embedder) InputSize() (int, int) {
	return embedInputSize, embedInputSize
}

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.input != nil {
		e.input.Destroy()
	}
	if e.output != nil {
		e.output.Destroy()
	}
}

// unitVector returns a copy of v scaled to L2 norm 1.
func unitVector(v []float32) ([]float32, error) {
	wide := make([]float64, len(v))
	for i, x := range v {
		wide[i] = float64(x)
	}
	norm := floats.Norm(wide, 2)
	if norm == 0 {
		return nil, errDegenerateEmbedding
	}
	floats.Scale(1/norm, wide)

	out := make([]float32, len(wide))
	for i, x := range wide {
		out[i] = float32(x)
	}
	return out, nil
}
