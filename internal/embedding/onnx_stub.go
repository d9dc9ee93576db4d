//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

// ONNXConfig describes a sentence-embedding model exported to ONNX.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	OutputName string
}

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder is unavailable without CGO.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without CGO.
func NewONNXEmbedder(_ ONNXConfig) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, errNoCGO }
func (e *ONNXEmbedder) Dimensions() int                                  { return 0 }
func (e *ONNXEmbedder) Close() error                                     { return nil }
