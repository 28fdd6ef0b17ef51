package onnx

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Weights is the linear decision function recovered from an exported graph.
type Weights struct {
	Coefficient []float32
	Intercept   float32
}

// Dim returns the embedding dimension of the loaded graph.
func (w *Weights) Dim() int {
	return len(w.Coefficient)
}

// Score evaluates the graph for one embedding: sigmoid of the linear score.
func (w *Weights) Score(x []float32) float64 {
	z := float64(w.Intercept)
	for i, c := range w.Coefficient {
		z += float64(c) * float64(x[i])
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// Decide returns the class decision for one embedding.
func (w *Weights) Decide(x []float32) bool {
	return w.Score(x) > 0.5
}

// Load parses exported model bytes back into the classifier weights. It
// understands exactly the layout Export writes: a graph with `coefficient`
// and `intercept` float32 initializers.
func Load(data []byte) (*Weights, error) {
	graph, err := messageField(data, modelGraph)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("model has no graph")
	}

	w := &Weights{}
	var haveIntercept bool
	err = eachField(graph, func(num protowire.Number, wt protowire.Type, value []byte) error {
		if num != graphInitializer || wt != protowire.BytesType {
			return nil
		}
		name, raw, err := parseTensor(value)
		if err != nil {
			return err
		}
		switch name {
		case "coefficient":
			if len(raw)%4 != 0 {
				return fmt.Errorf("coefficient tensor has %d bytes", len(raw))
			}
			w.Coefficient = make([]float32, len(raw)/4)
			for i := range w.Coefficient {
				w.Coefficient[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
			}
		case "intercept":
			if len(raw) != 4 {
				return fmt.Errorf("intercept tensor has %d bytes", len(raw))
			}
			w.Intercept = math.Float32frombits(binary.LittleEndian.Uint32(raw))
			haveIntercept = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if len(w.Coefficient) == 0 || !haveIntercept {
		return nil, fmt.Errorf("graph is missing classifier weights")
	}
	return w, nil
}

// parseTensor extracts the name and raw little-endian payload of a
// TensorProto.
func parseTensor(data []byte) (string, []byte, error) {
	var name string
	var raw []byte
	err := eachField(data, func(num protowire.Number, wt protowire.Type, value []byte) error {
		switch {
		case num == tensorName && wt == protowire.BytesType:
			name = string(value)
		case num == tensorRawData && wt == protowire.BytesType:
			raw = value
		}
		return nil
	})
	return name, raw, err
}

// messageField returns the payload of the first length-delimited field with
// the given number, or nil if absent.
func messageField(data []byte, field protowire.Number) ([]byte, error) {
	var found []byte
	err := eachField(data, func(num protowire.Number, wt protowire.Type, value []byte) error {
		if found == nil && num == field && wt == protowire.BytesType {
			found = value
		}
		return nil
	})
	return found, err
}

// eachField walks a protobuf message, handing length-delimited field
// payloads to fn. Non-bytes fields are passed with a nil value.
func eachField(data []byte, fn func(num protowire.Number, wt protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, wt, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		var value []byte
		if wt == protowire.BytesType {
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			value = v
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, wt, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
		if err := fn(num, wt, value); err != nil {
			return err
		}
	}
	return nil
}
