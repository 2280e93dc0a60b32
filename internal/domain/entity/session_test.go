package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession_DefaultState(t *testing.T) {
	s := NewSession(10)
	require.Equal(t, StateIdle, s.State)
	require.Equal(t, int64(10), s.ChatID)
	require.False(t, s.HasTask())
	require.Zero(t, s.PendingMessageID)
}

func TestSession_Lifecycle(t *testing.T) {
	d, ok := DefaultRegistry().Lookup(TaskObjectDetection)
	require.True(t, ok)

	s := NewSession(1)
	s.SelectTask(d)
	require.Equal(t, StateTaskSelected, s.State)
	require.Equal(t, TaskObjectDetection, s.SelectedTask)
	require.Equal(t, "Object Detection", s.TaskDisplayName)

	s.BeginProcessing("img-1")
	require.Equal(t, StateProcessing, s.State)
	require.True(t, s.HasTask())

	s.PendingMessageID = 42
	s.Reset()
	require.Equal(t, StateIdle, s.State)
	require.False(t, s.HasTask())
	require.Empty(t, s.TaskDisplayName)
	require.Empty(t, s.ActiveImageID)
	require.Equal(t, 42, s.PendingMessageID)
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession(1)
	c := s.Clone()
	c.State = StateProcessing
	require.Equal(t, StateIdle, s.State)
}
