package extractor

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once

// initRuntime initializes the shared ONNX Runtime environment once per
// process. ONNXRUNTIME_SHARED_LIBRARY_PATH overrides the library location
// when the default loader cannot find it.
func initRuntime() error {
	var err error
	ortInit.Do(func() {
		if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		err = ort.InitializeEnvironment()
	})
	return err
}

// ORT runs a frozen extractor model through ONNX Runtime.
type ORT struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	dim        int
}

// NewORT loads the extractor model at path. The model must have a single
// image input and a single [1, patches, dim] embedding output; dim is read
// from the model's output metadata.
func NewORT(path string) (*ORT, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect extractor model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("extractor model must have 1 input and 1 output, has %d/%d",
			len(inputs), len(outputs))
	}
	outDims := outputs[0].Dimensions
	if len(outDims) != 3 || outDims[2] <= 0 {
		return nil, fmt.Errorf("extractor output shape %v is not [1, patches, dim]", outDims)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("open extractor session: %w", err)
	}

	return &ORT{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		dim:        int(outDims[2]),
	}, nil
}

// Dim returns the embedding dimension of the loaded model.
func (o *ORT) Dim() int {
	return o.dim
}

// Embed runs the extractor on one normalized image tensor and returns the
// per-patch embeddings. A shape mismatch between the model output and the
// contract is an error, not a skip.
func (o *ORT) Embed(input []float32, height, width int) ([][]float32, error) {
	if len(input) != 3*height*width {
		return nil, fmt.Errorf("input tensor has %d values, want %d", len(input), 3*height*width)
	}

	in, err := ort.NewTensor(ort.NewShape(1, 3, int64(height), int64(width)), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, fmt.Errorf("run extractor: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("extractor output is not a float32 tensor")
	}
	shape := out.GetShape()
	if len(shape) != 3 || shape[0] != 1 || int(shape[2]) != o.dim {
		return nil, fmt.Errorf("extractor output shape %v, want [1, patches, %d]", shape, o.dim)
	}

	patches := int(shape[1])
	data := out.GetData()
	feats := make([][]float32, patches)
	for i := 0; i < patches; i++ {
		row := make([]float32, o.dim)
		copy(row, data[i*o.dim:(i+1)*o.dim])
		feats[i] = row
	}
	return feats, nil
}

// Close releases the underlying session.
func (o *ORT) Close() error {
	return o.session.Destroy()
}
