package kanban

import (
	"math"
	"time"

	"taskboard-api/domain"
)

// Stats aggregates the board view for the statistics panel.
type Stats struct {
	Total          int `json:"total"`
	Todo           int `json:"todo"`
	InProgress     int `json:"inProgress"`
	Done           int `json:"done"`
	HighPriority   int `json:"highPriority"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completionRate"`
}

// ComputeStats counts tasks per column, high-priority and overdue tasks, and
// the completion rate as a rounded percentage. A task is overdue when its due
// date is strictly before now.
func ComputeStats(columns []Column, now time.Time) Stats {
	var s Stats
	for _, col := range columns {
		n := len(col.Tasks)
		s.Total += n
		switch col.ID {
		case domain.StatusTodo:
			s.Todo += n
		case domain.StatusInProgress:
			s.InProgress += n
		case domain.StatusDone:
			s.Done += n
		}
		for _, t := range col.Tasks {
			if t.Priority == domain.PriorityHigh {
				s.HighPriority++
			}
			if t.DueDate != nil && t.DueDate.Before(now) {
				s.Overdue++
			}
		}
	}
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Done) / float64(s.Total) * 100))
	}
	return s
}
