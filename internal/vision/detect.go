package vision

import (
	"fmt"
	"math"
	"slices"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/photomarket/internal/models"
)

// Detection is one face found by the detector, in original image pixels.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
	Landmarks  [5][2]float32
}

// Box converts the detection to the stored top/right/bottom/left layout.
func (d Detection) Box() models.BoundingBox {
	return models.BoundingBox{
		Top:    int(math.Round(float64(d.BBox[1]))),
		Right:  int(math.Round(float64(d.BBox[2]))),
		Bottom: int(math.Round(float64(d.BBox[3]))),
		Left:   int(math.Round(float64(d.BBox[0]))),
	}
}

// Detector runs RetinaFace (det_10g) with a fixed 640x640 input.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

const (
	detInputSize     = 640
	anchorsPerStride = 2
	nmsIoU           = 0.4
)

var strides = []int{8, 16, 32}

// det_10g output names, grouped as scores, boxes, landmarks per stride.
var detOutputs = []struct {
	name string
	cols int64
}{
	{"448", 1}, {"471", 1}, {"494", 1},
	{"451", 4}, {"474", 4}, {"497", 4},
	{"454", 10}, {"477", 10}, {"500", 10},
}

// NewDetector loads the RetinaFace model. opts may be nil for ORT defaults.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputSize, detInputSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	names := make([]string, len(detOutputs))
	tensors := make([]*ort.Tensor[float32], len(detOutputs))
	values := make([]ort.Value, len(detOutputs))
	destroy := func() {
		inputTensor.Destroy()
		for _, t := range tensors {
			if t != nil {
				t.Destroy()
			}
		}
	}

	for i, out := range detOutputs {
		stride := int64(strides[i%len(strides)])
		rows := (detInputSize / stride) * (detInputSize / stride) * anchorsPerStride
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(rows, out.cols))
		if err != nil {
			destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", out.name, err)
		}
		names[i] = out.name
		tensors[i] = t
		values[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"}, names,
		[]ort.Value{inputTensor}, values,
		opts,
	)
	if err != nil {
		destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: tensors,
		threshold:     threshold,
		inputW:        detInputSize,
		inputH:        detInputSize,
	}, nil
}

// Detect runs the model on CHW input and returns faces scaled to origW x origH.
func (d *Detector) Detect(input []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), input)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	return nms(d.decode(origW, origH), nmsIoU), nil
}

// decode turns anchor offsets at every stride into boxes above threshold.
func (d *Detector) decode(origW, origH int) []Detection {
	var out []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)
	n := len(strides)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()
		boxes := d.outputTensors[si+n].GetData()
		marks := d.outputTensors[si+2*n].GetData()
		st := float32(stride)

		idx := 0
		for cy := 0; cy < d.inputH/stride; cy++ {
			for cx := 0; cx < d.inputW/stride; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if scores[idx] >= d.threshold {
						ax, ay := float32(cx)*st, float32(cy)*st

						det := Detection{
							Confidence: scores[idx],
							BBox: [4]float32{
								clampF((ax-boxes[idx*4]*st)*scaleW, 0, float32(origW)),
								clampF((ay-boxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
								clampF((ax+boxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
								clampF((ay+boxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
							},
						}
						for li := 0; li < 5; li++ {
							det.Landmarks[li][0] = (ax + marks[idx*10+li*2]*st) * scaleW
							det.Landmarks[li][1] = (ay + marks[idx*10+li*2+1]*st) * scaleH
						}
						out = append(out, det)
					}
					idx++
				}
			}
		}
	}
	return out
}

func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms keeps the highest-scoring box of every overlapping group.
func nms(dets []Detection, iouThreshold float32) []Detection {
	slices.SortStableFunc(dets, func(a, b Detection) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	var kept []Detection
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if iou(k.BBox, d.BBox) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	x1, y1 := max(a[0], b[0]), max(a[1], b[1])
	x2, y2 := min(a[2], b[2]), min(a[3], b[3])
	inter := max(0, x2-x1) * max(0, y2-y1)

	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}
