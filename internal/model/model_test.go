package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransform_Compose(t *testing.T) {
	tests := []struct {
		name string
		ops  []TransformOp
		want Transform
	}{
		{"identity", nil, Transform{}},
		{"left once", []TransformOp{OpRotateLeft}, Transform{QuarterTurns: 1}},
		{"right once", []TransformOp{OpRotateRight}, Transform{QuarterTurns: 3}},
		{"flip", []TransformOp{OpFlip}, Transform{QuarterTurns: 2}},
		{"left four times", []TransformOp{OpRotateLeft, OpRotateLeft, OpRotateLeft, OpRotateLeft}, Transform{}},
		{"left then right", []TransformOp{OpRotateLeft, OpRotateRight}, Transform{}},
		{"flip twice", []TransformOp{OpFlip, OpFlip}, Transform{}},
		{"unknown op", []TransformOp{"mirror"}, Transform{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Transform
			for _, op := range tt.ops {
				tr = tr.Compose(op)
			}
			require.Equal(t, tt.want, tr)
		})
	}
}

func TestTransform_WithSkew(t *testing.T) {
	tr := Transform{}.WithSkew(3.5)
	require.InDelta(t, 3.5, tr.Skew, 1e-9)
	require.Equal(t, 0, tr.QuarterTurns)

	tr = tr.WithSkew(-3.5)
	require.True(t, tr.IsIdentity())

	tr = Transform{}.WithSkew(50)
	require.InDelta(t, -40, tr.Skew, 1e-9)
	require.Equal(t, 1, tr.QuarterTurns)

	tr = Transform{}.WithSkew(-45)
	require.InDelta(t, 45, tr.Skew, 1e-9)
	require.Equal(t, 3, tr.QuarterTurns)
}

func TestState_Terminal(t *testing.T) {
	require.False(t, StatePending.Terminal())
	require.False(t, StateRunning.Terminal())
	require.True(t, StateCompleted.Terminal())
	require.True(t, StateCancelled.Terminal())
	require.True(t, StateFailed.Terminal())
}

func TestStringSlice_ScanValue(t *testing.T) {
	var s StringSlice
	require.NoError(t, s.Scan(nil))
	require.Empty(t, s)

	require.NoError(t, s.Scan([]byte(`["unit 2: broken"]`)))
	require.Equal(t, StringSlice{"unit 2: broken"}, s)

	require.Error(t, s.Scan("not-bytes"))

	v, err := StringSlice(nil).Value()
	require.NoError(t, err)
	require.Equal(t, []byte(`[]`), v)
}
