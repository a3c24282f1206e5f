package emb

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// Config describes where the runtime, the model and its tokenizer live.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	// HiddenSize is only consulted when the model does not declare a fixed
	// embedding width in its output shape.
	HiddenSize int
}

// Encoder turns sentences into L2-normalised embeddings using an ONNX
// sentence-transformer export.
type Encoder struct {
	mu         sync.Mutex
	tk         *tokenizer.Tokenizer
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	pooled     bool
	hidden     int
	maxSeqLen  int
	envHeld    bool
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnv(dll string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if dll != "" {
			ort.SetSharedLibraryPath(dll)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnv() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}

// Init loads the tokenizer and creates the inference session.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" {
		return errors.New("model path is required")
	}
	if cfg.TokenizerPath == "" {
		return errors.New("tokenizer path is required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 256
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := acquireEnv(cfg.OrtDLL); err != nil {
		return err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		releaseEnv()
		return fmt.Errorf("inspect model: %w", err)
	}
	inputNames, err := pickInputs(inputs)
	if err != nil {
		releaseEnv()
		return err
	}
	out, err := pickOutput(outputs)
	if err != nil {
		releaseEnv()
		return err
	}
	if len(out.Dimensions) < 2 {
		releaseEnv()
		return fmt.Errorf("output %q has unexpected shape %v", out.Name, out.Dimensions)
	}
	pooled := len(out.Dimensions) == 2
	hidden := int(out.Dimensions[len(out.Dimensions)-1])
	if hidden <= 0 {
		hidden = cfg.HiddenSize
	}
	if hidden <= 0 {
		releaseEnv()
		return fmt.Errorf("output %q has a dynamic width; set hiddenSize", out.Name)
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{out.Name}, nil)
	if err != nil {
		releaseEnv()
		return fmt.Errorf("create session: %w", err)
	}
	e.tk = tk
	e.session = session
	e.inputNames = inputNames
	e.outputName = out.Name
	e.pooled = pooled
	e.hidden = hidden
	e.maxSeqLen = cfg.MaxSeqLen
	e.envHeld = true
	return nil
}

func pickInputs(infos []ort.InputOutputInfo) ([]string, error) {
	var names []string
	for _, info := range infos {
		switch info.Name {
		case "input_ids", "attention_mask", "token_type_ids":
			names = append(names, info.Name)
		default:
			return nil, fmt.Errorf("unsupported model input %q", info.Name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("model declares no inputs")
	}
	return names, nil
}

func pickOutput(infos []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	if len(infos) == 0 {
		return ort.InputOutputInfo{}, errors.New("model declares no outputs")
	}
	for _, preferred := range []string{"last_hidden_state", "token_embeddings", "sentence_embedding"} {
		for _, info := range infos {
			if info.Name == preferred {
				return info, nil
			}
		}
	}
	return infos[0], nil
}

// Encode embeds a single sentence.
func (e *Encoder) Encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.tk == nil {
		return nil, errors.New("encoder is not initialized")
	}
	enc, err := e.tk.EncodeSingle(strings.TrimSpace(text), true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := truncateTokens(enc.Ids, e.maxSeqLen)
	mask := truncateTokens(enc.AttentionMask, e.maxSeqLen)
	types := truncateTokens(enc.TypeIds, e.maxSeqLen)
	if len(ids) == 0 {
		return nil, errors.New("tokenizer produced no tokens")
	}
	seq := len(ids)
	ids64 := toInt64(ids, seq, 0)
	mask64 := toInt64(mask, seq, 1)
	types64 := toInt64(types, seq, 0)

	shape := ort.NewShape(1, int64(seq))
	inputs := make([]ort.Value, 0, len(e.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range e.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = ids64
		case "attention_mask":
			data = mask64
		default:
			data = types64
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	outShape := ort.NewShape(1, int64(seq), int64(e.hidden))
	if e.pooled {
		outShape = ort.NewShape(1, int64(e.hidden))
	}
	out, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()
	if err := e.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	data := out.GetData()
	var vec []float32
	if e.pooled {
		vec = append([]float32(nil), data[:e.hidden]...)
	} else {
		vec = meanPool(data, mask64, seq, e.hidden)
	}
	l2Normalize(vec)
	return vec, nil
}

// Dimensions reports the embedding width.
func (e *Encoder) Dimensions() int {
	return e.hidden
}

// Close releases the session and, for the last encoder, the ORT environment.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.envHeld {
		releaseEnv()
		e.envHeld = false
	}
}
