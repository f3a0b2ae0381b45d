// Package kanban holds the pure in-memory column view of a board: a fixed
// todo / in-progress / done partition of tasks plus the reducer the
// presentation layer drives between repository round-trips.
package kanban

import "taskboard-api/domain"

// Column is one status partition of the board view. Membership derives from
// the task's Status; there is no separate column field to fall out of sync.
type Column struct {
	ID    domain.Status `json:"id"`
	Title string        `json:"title"`
	Tasks []domain.Task `json:"tasks"`
}

var columnTitles = map[domain.Status]string{
	domain.StatusTodo:       "To Do",
	domain.StatusInProgress: "In Progress",
	domain.StatusDone:       "Done",
}

// Title returns the display title for a status column.
func Title(s domain.Status) string {
	return columnTitles[s]
}

// Columns partitions tasks into the fixed column set, preserving task order
// within each column. Tasks with an unknown status are dropped from the view.
func Columns(tasks []domain.Task) []Column {
	cols := make([]Column, 0, len(columnTitles))
	for _, status := range domain.Statuses() {
		col := Column{ID: status, Title: Title(status), Tasks: []domain.Task{}}
		for _, t := range tasks {
			if t.Status == status {
				col.Tasks = append(col.Tasks, t)
			}
		}
		cols = append(cols, col)
	}
	return cols
}
