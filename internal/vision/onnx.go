package vision

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXModel is a classifier artifact served by ONNX Runtime.
type ONNXModel struct {
	session     *ort.DynamicAdvancedSession
	spec        InputSpec
	outputShape ort.Shape
}

// LoadOptions controls how the artifact is opened. Zero values keep what the
// artifact declares.
type LoadOptions struct {
	LibraryPath string
	Height      int
	Width       int
	Order       ChannelOrder
}

// LoadONNXModel reads the artifact's first input and output once and opens a
// session reused by every request.
func LoadONNXModel(path string, opts LoadOptions) (*ONNXModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("could not load model at %s: %w", path, err)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", path)
	}

	spec := InputSpecFromShape(inputs[0].Dimensions).Override(opts.Height, opts.Width, opts.Order)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:     session,
		spec:        spec,
		outputShape: batchOfOne(outputs[0].Dimensions),
	}, nil
}

// batchOfOne resolves dynamic dimensions of the output for a single image.
func batchOfOne(dims ort.Shape) ort.Shape {
	if len(dims) == 0 {
		return ort.NewShape(1, 2)
	}
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func (m *ONNXModel) InputSpec() InputSpec { return m.spec }

func (m *ONNXModel) Run(t *Tensor) ([]float32, error) {
	input, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](m.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := output.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (m *ONNXModel) Close() error {
	if err := m.session.Destroy(); err != nil {
		return err
	}
	return ort.DestroyEnvironment()
}
