package entity

// TensorShape размеры тензора, от внешнего измерения к внутреннему.
type TensorShape []int64

// Size возвращает число элементов.
func (s TensorShape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= int(d)
	}
	return n
}

// Strides возвращает шаги для плоского row-major буфера.
func (s TensorShape) Strides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= int(s[i])
	}
	return strides
}

// Offset переводит многомерный индекс в смещение плоского буфера.
func (s TensorShape) Offset(idx ...int) int {
	strides := s.Strides()
	off := 0
	for i, v := range idx {
		off += v * strides[i]
	}
	return off
}
