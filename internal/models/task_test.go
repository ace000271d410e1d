package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_Valid(t *testing.T) {
	for _, s := range []TaskStatus{StatusTodo, StatusInProgress, StatusDone} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []TaskStatus{"", "todo", "Archived", "In progress", "Done "} {
		assert.False(t, s.Valid(), s)
	}
}

func TestTaskPatch_Empty(t *testing.T) {
	title := "x"
	status := StatusDone

	assert.True(t, TaskPatch{}.Empty())
	assert.False(t, TaskPatch{Title: &title}.Empty())
	assert.False(t, TaskPatch{Status: &status}.Empty())
}
