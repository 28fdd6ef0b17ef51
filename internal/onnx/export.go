// Package onnx serializes a fitted classifier into a portable ONNX graph
// and reads such graphs back. The exported model has a single dynamic-batch
// input of patch embeddings and a single flat tensor of per-patch scores,
// so any number of patches can be scored in one inference call.
package onnx

import (
	"encoding/binary"
	"errors"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"patch-trainer/internal/classifier"
)

// Graph contract of the exported model.
const (
	// InputName is the graph's only input: float32 [num_patches, dim].
	InputName = "patch_features"

	// OutputName is the graph's only output: float32 [num_patches, 1]
	// foreground probabilities (sigmoid of the linear score).
	OutputName = "scores"

	irVersion    = 8
	opsetVersion = 17
	producerName = "patch-trainer"

	dynamicAxis = "num_patches"
)

// ErrInvalidModel is returned when the classifier cannot be exported:
// missing weights or a zero embedding dimension.
var ErrInvalidModel = errors.New("classifier is not exportable")

// Field numbers from onnx.proto.
const (
	modelIRVersion   = 1
	modelProducer    = 2
	modelGraph       = 7
	modelOpsetImport = 8

	opsetDomain       = 1
	opsetVersionField = 2

	graphNode        = 1
	graphName        = 2
	graphInitializer = 5
	graphInput       = 11
	graphOutput      = 12

	nodeInput  = 1
	nodeOutput = 2
	nodeName   = 3
	nodeOpType = 4

	tensorDims     = 1
	tensorDataType = 2
	tensorName     = 8
	tensorRawData  = 9

	valueInfoName = 1
	valueInfoType = 2

	typeTensorType = 1

	tensorTypeElem  = 1
	tensorTypeShape = 2

	shapeDim = 1

	dimValue = 1
	dimParam = 2

	dataTypeFloat = 1
)

// Export serializes the fitted classifier as ONNX model bytes. The graph is
// Gemm(patch_features, coefficient, intercept) followed by Sigmoid, giving
// one probability per input row.
func Export(m *classifier.Model) ([]byte, error) {
	if m == nil || m.Dim() == 0 {
		return nil, ErrInvalidModel
	}
	dim := m.Dim()

	coef := make([]byte, 4*dim)
	for i, w := range m.Weights {
		binary.LittleEndian.PutUint32(coef[4*i:], math.Float32bits(float32(w)))
	}
	bias := make([]byte, 4)
	binary.LittleEndian.PutUint32(bias, math.Float32bits(float32(m.Bias)))

	var graph []byte
	graph = appendBytesField(graph, graphName, []byte("patch_classifier"))
	graph = appendMessage(graph, graphNode, gemmNode())
	graph = appendMessage(graph, graphNode, sigmoidNode())
	graph = appendMessage(graph, graphInitializer, tensor("coefficient", []int64{int64(dim), 1}, coef))
	graph = appendMessage(graph, graphInitializer, tensor("intercept", []int64{1}, bias))
	graph = appendMessage(graph, graphInput, valueInfo(InputName, dim))
	graph = appendMessage(graph, graphOutput, valueInfo(OutputName, 1))

	var model []byte
	model = protowire.AppendTag(model, modelIRVersion, protowire.VarintType)
	model = protowire.AppendVarint(model, irVersion)
	model = appendBytesField(model, modelProducer, []byte(producerName))
	model = appendMessage(model, modelGraph, graph)
	model = appendMessage(model, modelOpsetImport, opsetImport())

	return model, nil
}

func gemmNode() []byte {
	var node []byte
	node = appendBytesField(node, nodeInput, []byte(InputName))
	node = appendBytesField(node, nodeInput, []byte("coefficient"))
	node = appendBytesField(node, nodeInput, []byte("intercept"))
	node = appendBytesField(node, nodeOutput, []byte("logits"))
	node = appendBytesField(node, nodeName, []byte("linear"))
	node = appendBytesField(node, nodeOpType, []byte("Gemm"))
	return node
}

func sigmoidNode() []byte {
	var node []byte
	node = appendBytesField(node, nodeInput, []byte("logits"))
	node = appendBytesField(node, nodeOutput, []byte(OutputName))
	node = appendBytesField(node, nodeName, []byte("probability"))
	node = appendBytesField(node, nodeOpType, []byte("Sigmoid"))
	return node
}

func opsetImport() []byte {
	var op []byte
	op = appendBytesField(op, opsetDomain, []byte(""))
	op = protowire.AppendTag(op, opsetVersionField, protowire.VarintType)
	op = protowire.AppendVarint(op, opsetVersion)
	return op
}

func tensor(name string, dims []int64, raw []byte) []byte {
	var t []byte
	for _, d := range dims {
		t = protowire.AppendTag(t, tensorDims, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(d))
	}
	t = protowire.AppendTag(t, tensorDataType, protowire.VarintType)
	t = protowire.AppendVarint(t, dataTypeFloat)
	t = appendBytesField(t, tensorName, []byte(name))
	t = appendBytesField(t, tensorRawData, raw)
	return t
}

// valueInfo describes a float32 tensor [num_patches, width] with a dynamic
// first axis.
func valueInfo(name string, width int) []byte {
	var dynDim []byte
	dynDim = appendBytesField(dynDim, dimParam, []byte(dynamicAxis))

	var fixedDim []byte
	fixedDim = protowire.AppendTag(fixedDim, dimValue, protowire.VarintType)
	fixedDim = protowire.AppendVarint(fixedDim, uint64(width))

	var shape []byte
	shape = appendMessage(shape, shapeDim, dynDim)
	shape = appendMessage(shape, shapeDim, fixedDim)

	var tt []byte
	tt = protowire.AppendTag(tt, tensorTypeElem, protowire.VarintType)
	tt = protowire.AppendVarint(tt, dataTypeFloat)
	tt = appendMessage(tt, tensorTypeShape, shape)

	var typ []byte
	typ = appendMessage(typ, typeTensorType, tt)

	var vi []byte
	vi = appendBytesField(vi, valueInfoName, []byte(name))
	vi = appendMessage(vi, valueInfoType, typ)
	return vi
}

func appendMessage(buf []byte, field protowire.Number, msg []byte) []byte {
	return appendBytesField(buf, field, msg)
}

func appendBytesField(buf []byte, field protowire.Number, value []byte) []byte {
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	return protowire.AppendBytes(buf, value)
}
