package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Order(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, 6, r.Len())

	ids := make([]TaskID, 0, r.Len())
	for _, d := range r.All() {
		ids = append(ids, d.ID)
		require.NotEmpty(t, d.Button)
		require.NotEmpty(t, d.Name)
		require.NotEmpty(t, d.ModelName)
	}
	require.Equal(t, []TaskID{
		TaskObjectDetection,
		TaskEmotionRecognition,
		TaskNudityDetection,
		TaskTextExtraction,
		TaskBackgroundRemoval,
		TaskImageSegmentation,
	}, ids)
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()

	d, ok := r.Lookup(TaskTextExtraction)
	require.True(t, ok)
	require.Equal(t, "Text Extraction", d.Name)
	require.Equal(t, OutputText, d.Output)

	_, ok = r.Lookup("face_swap")
	require.False(t, ok)
}

func TestNewRegistry_SkipsDuplicates(t *testing.T) {
	r := NewRegistry(
		Descriptor{ID: "a", Name: "first"},
		Descriptor{ID: "a", Name: "second"},
	)
	require.Equal(t, 1, r.Len())
	d, _ := r.Lookup("a")
	require.Equal(t, "first", d.Name)
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := DefaultRegistry()
	all := r.All()
	all[0].Name = "changed"
	d, _ := r.Lookup(TaskObjectDetection)
	require.Equal(t, "Object Detection", d.Name)
}

func TestOutputKind_String(t *testing.T) {
	require.Equal(t, "photo", OutputPhoto.String())
	require.Equal(t, "text", OutputText.String())
}
