//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/cursobot/pkg/utils"
)

// ONNXConfig describes a sentence-embedding model exported to ONNX.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the pooled sentence embedding output. Defaults to "output".
	OutputName string
}

// ONNXEmbedder runs a sentence-embedding model through ONNX Runtime. It requires
// CGO and the onnxruntime shared library. Inference is serialised because the
// session reuses one set of tensors.
type ONNXEmbedder struct {
	cfg       ONNXConfig
	tokenizer Tokenizer

	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model at cfg.ModelPath.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.MaxTokens <= 2 {
		cfg.MaxTokens = 128
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	e := &ONNXEmbedder{cfg: cfg, tokenizer: &SimpleTokenizer{}}
	if err := e.allocate(); err != nil {
		e.Close()
		return nil, err
	}
	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", cfg.ModelPath, err)
	}
	e.session = session
	return e, nil
}

func (e *ONNXEmbedder) allocate() error {
	ids, mask, types := e.tokenizer.Tokenize("", e.cfg.MaxTokens)
	shape := ort.NewShape(1, int64(e.cfg.MaxTokens))
	var err error
	if e.inputIDs, err = ort.NewTensor(shape, ids); err != nil {
		return fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewTensor(shape, mask); err != nil {
		return fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDs, err = ort.NewTensor(shape, types); err != nil {
		return fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	out := make([]float32, e.cfg.Dimensions)
	if e.output, err = ort.NewTensor(ort.NewShape(1, int64(e.cfg.Dimensions)), out); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	return nil
}

// Embed returns the unit-length embedding of text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, mask, types := e.tokenizer.Tokenize(text, e.cfg.MaxTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("embedder is closed")
	}
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	emb := make([]float32, e.cfg.Dimensions)
	copy(emb, e.output.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding width.
func (e *ONNXEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close destroys the session and its tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
		e.inputIDs = nil
	}
	if e.attentionMask != nil {
		_ = e.attentionMask.Destroy()
		e.attentionMask = nil
	}
	if e.tokenTypeIDs != nil {
		_ = e.tokenTypeIDs.Destroy()
		e.tokenTypeIDs = nil
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
