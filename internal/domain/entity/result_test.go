package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxArea(t *testing.T) {
	require.Equal(t, 48, Box{X: 10, Y: 20, Width: 8, Height: 6}.Area())
	require.Zero(t, Box{X: 10, Y: 20, Width: 0, Height: 6}.Area())
}

func TestCountLabels_KeepsFirstSeenOrder(t *testing.T) {
	got := CountLabels([]Detection{
		{Label: "dog"},
		{Label: "person"},
		{Label: "dog"},
		{Label: "car"},
		{Label: "person"},
		{Label: "dog"},
	})
	require.Equal(t, []ObjectCount{
		{Label: "dog", Count: 3},
		{Label: "person", Count: 2},
		{Label: "car", Count: 1},
	}, got)

	require.Empty(t, CountLabels(nil))
}
