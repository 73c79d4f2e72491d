package vision

import (
	"sort"

	"fabric-qc/internal/domain/entity"
)

// DefaultIoUThreshold порог перекрытия для подавления немаксимумов.
const DefaultIoUThreshold = 0.5

// NMS оставляет из каждой группы перекрывающихся областей самую уверенную.
// Результат отсортирован по убыванию уверенности. Вход не изменяется.
func NMS(boxes []entity.BoundingBox, iouThreshold float64) []entity.BoundingBox {
	if len(boxes) == 0 {
		return nil
	}
	sorted := make([]entity.BoundingBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]entity.BoundingBox, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && entity.IoU(sorted[i], sorted[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
