package port

import (
	"context"

	"fabric-qc/internal/domain/entity"
)

// InferenceEngine скомпилированная модель с заранее выделенными тензорами
type InferenceEngine interface {
	// Ready сообщает, загружена ли модель
	Ready() bool

	// InputShape форма входного тензора (NHWC)
	InputShape() entity.TensorShape

	// OutputShape форма выходного тензора
	OutputShape() entity.TensorShape

	// Input возвращает буфер входного тензора для заполнения
	Input() []float32

	// Run выполняет инференс над текущим содержимым Input
	Run(ctx context.Context) error

	// Output возвращает буфер выходного тензора после Run
	Output() []float32
}
