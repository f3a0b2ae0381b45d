package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusTodo, true},
		{StatusInProgress, true},
		{StatusDone, true},
		{Status("archived"), false},
		{Status(""), false},
	}
	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPriorityValid(t *testing.T) {
	tests := []struct {
		priority Priority
		want     bool
	}{
		{PriorityLow, true},
		{PriorityMedium, true},
		{PriorityHigh, true},
		{Priority("urgent"), false},
		{Priority(""), false},
	}
	for _, tt := range tests {
		if got := tt.priority.Valid(); got != tt.want {
			t.Errorf("Priority(%q).Valid() = %v, want %v", tt.priority, got, tt.want)
		}
	}
}

func TestTaskMarshalOmitsNilDueDate(t *testing.T) {
	task := Task{
		ID:       "t1",
		Title:    "Title",
		Status:   StatusTodo,
		Priority: PriorityMedium,
		Comments: []Comment{},
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if strings.Contains(string(payload), "dueDate") {
		t.Fatalf("expected dueDate to be omitted, got %s", payload)
	}
	if !strings.Contains(string(payload), `"comments":[]`) {
		t.Fatalf("expected empty comments array, got %s", payload)
	}
}

func TestTaskMarshalIncludesDueDate(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Title: "Title", DueDate: &due}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if !strings.Contains(string(payload), `"dueDate":"2026-03-01T12:00:00Z"`) {
		t.Fatalf("expected RFC3339 dueDate, got %s", payload)
	}
}

func TestAuthStateMarshalNullUser(t *testing.T) {
	payload, err := sonic.Marshal(AuthState{})
	if err != nil {
		t.Fatalf("marshal auth state: %v", err)
	}
	if !strings.Contains(string(payload), `"user":null`) {
		t.Fatalf("expected null user, got %s", payload)
	}
	if !strings.Contains(string(payload), `"isAuthenticated":false`) {
		t.Fatalf("expected isAuthenticated false, got %s", payload)
	}
}
