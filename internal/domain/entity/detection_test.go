package entity

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundingBoxCenter(t *testing.T) {
	b := BoundingBox{XMin: 10, YMin: 20, XMax: 18, YMax: 26}
	x, y := b.Center()
	require.Equal(t, 14.0, x)
	require.Equal(t, 23.0, y)
	require.Equal(t, 48.0, b.Area())
}

func TestBoundingBoxClamp(t *testing.T) {
	b := BoundingBox{XMin: -5, YMin: -1, XMax: 120, YMax: 50}.Clamp(100, 40)
	require.Equal(t, 0.0, b.XMin)
	require.Equal(t, 0.0, b.YMin)
	require.Equal(t, 100.0, b.XMax)
	require.Equal(t, 40.0, b.YMax)
	require.Equal(t, image.Rect(0, 0, 100, 40), b.Rect())
}

func TestIoU_Identity(t *testing.T) {
	boxes := []BoundingBox{
		{XMin: 0, YMin: 0, XMax: 10, YMax: 10},
		{XMin: 3.5, YMin: 1.25, XMax: 7, YMax: 90},
		{XMin: 100, YMin: 200, XMax: 101, YMax: 201},
	}
	for _, b := range boxes {
		require.InDelta(t, 1.0, IoU(b, b), 1e-12)
	}
}

func TestIoU_Symmetric(t *testing.T) {
	a := BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	b := BoundingBox{XMin: 2.5, YMin: 0, XMax: 12.5, YMax: 10}
	require.InDelta(t, 0.6, IoU(a, b), 1e-9)
	require.Equal(t, IoU(a, b), IoU(b, a))
}

func TestIoU_DisjointAndDegenerate(t *testing.T) {
	a := BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	far := BoundingBox{XMin: 50, YMin: 50, XMax: 60, YMax: 60}
	point := BoundingBox{XMin: 5, YMin: 5, XMax: 5, YMax: 5}
	require.Zero(t, IoU(a, far))
	require.Zero(t, IoU(point, point))
	require.Zero(t, IoU(a, point))
}

func TestDetectionResultStatus(t *testing.T) {
	var nilResult *DetectionResult
	require.Equal(t, StatusPassed, nilResult.Status())

	r := &DetectionResult{IsDefective: true, Boxes: []BoundingBox{{XMax: 1, YMax: 1}}}
	require.Equal(t, StatusDefective, r.Status())

	s := r.StatusOnly()
	require.True(t, s.IsDefective)
	require.Empty(t, s.Boxes)
	require.Len(t, r.Boxes, 1)
}
