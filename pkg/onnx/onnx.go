// Package onnx wraps ONNX Runtime for the single-input, single-output float
// models used by this module.
//
// # Architecture
//
// The package exposes two core types:
//
//   - [Env]: the process-wide runtime; reference counted, so several owners
//     may open and close it independently
//   - [Session]: one loaded .onnx model with fixed input/output names
//
// Usage flow:
//
//	env, _ := onnx.NewEnv("/usr/lib/libonnxruntime.so")
//	defer env.Close()
//
//	session, _ := env.NewSession("classifier.onnx", "input", "output")
//	defer session.Close()
//
//	probs, shape, _ := session.Run([]int64{1, 28, 295}, data)
//
// # Thread Safety
//
// Env is safe for concurrent use. Session.Run is thread-safe (ONNX Runtime
// uses internal locking); Close must not race with Run.
package onnx

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envMu   sync.Mutex
	envRefs int
)

// Env is a handle on the shared ONNX Runtime environment.
type Env struct {
	once sync.Once
}

// NewEnv initializes the runtime on first use. libPath selects the shared
// library; empty uses the platform default search.
func NewEnv(libPath string) (*Env, error) {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
		}
	}
	envRefs++
	return &Env{}, nil
}

// Close releases this handle. The runtime is destroyed with the last one.
func (e *Env) Close() error {
	var err error
	e.once.Do(func() {
		envMu.Lock()
		defer envMu.Unlock()
		envRefs--
		if envRefs == 0 {
			err = ort.DestroyEnvironment()
		}
	})
	return err
}

// NewSession loads the model at path.
func (e *Env) NewSession(path, input, output string) (*Session, error) {
	if path == "" {
		return nil, errors.New("onnx: empty model path")
	}
	s, err := ort.NewDynamicAdvancedSession(path, []string{input}, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx: load %s: %w", path, err)
	}
	return &Session{session: s, path: path}, nil
}

// Session holds a loaded ONNX model.
type Session struct {
	session *ort.DynamicAdvancedSession
	path    string
}

// Path returns the model file the session was loaded from.
func (s *Session) Path() string { return s.path }

// Run feeds one float32 tensor and returns the output data and shape.
func (s *Session) Run(shape []int64, data []float32) ([]float32, []int64, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, nil, err
	}
	in, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("onnx: run %s: %w", s.path, err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("onnx: %s: output is not a float32 tensor", s.path)
	}
	return slices.Clone(out.GetData()), slices.Clone([]int64(out.GetShape())), nil
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func checkShape(shape []int64, n int) error {
	if n == 0 {
		return errors.New("onnx: empty tensor data")
	}
	total := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return fmt.Errorf("onnx: invalid dimension %d in %v", d, shape)
		}
		total *= d
	}
	if total != int64(n) {
		return fmt.Errorf("onnx: shape %v needs %d elements, have %d", shape, total, n)
	}
	return nil
}
