// Package inference загружает модель ONNX и держит её тензоры в памяти процесса.
package inference

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"fabric-qc/internal/domain/entity"
	"fabric-qc/internal/domain/port"
)

// ErrModelPath путь к модели не задан.
var ErrModelPath = errors.New("model path is empty")

var envOnce sync.Once
var envErr error

// InitEnvironment один раз на процесс подключает разделяемую библиотеку ONNX Runtime.
func InitEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// ONNXEngine модель с заранее выделенными входным и выходным тензорами.
type ONNXEngine struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	inShape  entity.TensorShape
	outShape entity.TensorShape
}

// NewONNXEngine читает формы тензоров из модели и создаёт сессию.
// Модель должна иметь ровно один вход и один выход float32.
func NewONNXEngine(modelPath, libPath string) (*ONNXEngine, error) {
	if modelPath == "" {
		return nil, ErrModelPath
	}
	if err := InitEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("model must have one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	inShape, err := staticShape(inputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", inputs[0].Name, err)
	}
	outShape, err := staticShape(outputs[0].Dimensions)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", outputs[0].Name, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(runtime.NumCPU())

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ONNXEngine{
		session:  session,
		input:    inputTensor,
		output:   outputTensor,
		inShape:  inShape,
		outShape: outShape,
	}, nil
}

// staticShape заменяет динамический размер пакета единицей.
// Остальные измерения должны быть заданы в модели.
func staticShape(dims ort.Shape) (entity.TensorShape, error) {
	shape := make(entity.TensorShape, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = 1
		default:
			return nil, fmt.Errorf("dynamic dimension %d in shape %v", i, dims)
		}
	}
	return shape, nil
}

// Ready сообщает, что сессия создана и ещё не освобождена.
func (e *ONNXEngine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// InputShape возвращает форму входа.
func (e *ONNXEngine) InputShape() entity.TensorShape { return e.inShape }

// OutputShape возвращает форму выхода.
func (e *ONNXEngine) OutputShape() entity.TensorShape { return e.outShape }

// Input возвращает данные входного тензора.
func (e *ONNXEngine) Input() []float32 { return e.input.GetData() }

// Output возвращает данные выходного тензора.
func (e *ONNXEngine) Output() []float32 { return e.output.GetData() }

// Run выполняет модель над текущим содержимым входного тензора.
func (e *ONNXEngine) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return entity.ErrNotReady
	}
	if err := e.session.Run(); err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	return nil
}

// Destroy освобождает сессию и тензоры.
func (e *ONNXEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	e.session.Destroy()
	e.input.Destroy()
	e.output.Destroy()
	e.session = nil
}

var _ port.InferenceEngine = (*ONNXEngine)(nil)
