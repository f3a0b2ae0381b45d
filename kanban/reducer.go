package kanban

import (
	"time"

	"taskboard-api/domain"
)

// ActionType discriminates reducer actions.
type ActionType string

const (
	ActionAddTask    ActionType = "ADD_TASK"
	ActionUpdateTask ActionType = "UPDATE_TASK"
	ActionDeleteTask ActionType = "DELETE_TASK"
	ActionMoveTask   ActionType = "MOVE_TASK"
	ActionSetTasks   ActionType = "SET_TASKS"
)

// Action is one discrete transition over the column view.
type Action struct {
	Type     ActionType
	Task     domain.Task
	TaskID   string
	ToColumn domain.Status
	Columns  []Column
}

// AddTask appends the task to the column matching its status.
func AddTask(task domain.Task) Action {
	return Action{Type: ActionAddTask, Task: task}
}

// UpdateTask replaces the task with a matching id wherever it currently
// lives; column membership is decided by existing location, not the payload.
func UpdateTask(task domain.Task) Action {
	return Action{Type: ActionUpdateTask, Task: task}
}

// DeleteTask removes the task with the given id from every column.
func DeleteTask(taskID string) Action {
	return Action{Type: ActionDeleteTask, TaskID: taskID}
}

// MoveTask relocates the task to the target column, updating its status and
// refreshing its timestamp.
func MoveTask(taskID string, to domain.Status) Action {
	return Action{Type: ActionMoveTask, TaskID: taskID, ToColumn: to}
}

// SetTasks replaces the whole view, used on initial load.
func SetTasks(columns []Column) Action {
	return Action{Type: ActionSetTasks, Columns: columns}
}

// Reducer applies actions to a column view. The zero value is usable; Now is
// only consulted when a move refreshes a task's timestamp.
type Reducer struct {
	Now func() time.Time
}

func (r Reducer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Reduce returns the new column view. It is pure: the input state is never
// mutated, and an unmatched action returns an equivalent copy of the state.
func (r Reducer) Reduce(state []Column, action Action) []Column {
	switch action.Type {
	case ActionAddTask:
		return mapColumns(state, func(col Column) Column {
			if col.ID == action.Task.Status {
				col.Tasks = append(col.Tasks, action.Task)
			}
			return col
		})
	case ActionUpdateTask:
		return mapColumns(state, func(col Column) Column {
			for i := range col.Tasks {
				if col.Tasks[i].ID == action.Task.ID {
					col.Tasks[i] = action.Task
				}
			}
			return col
		})
	case ActionDeleteTask:
		return mapColumns(state, func(col Column) Column {
			kept := col.Tasks[:0]
			for _, t := range col.Tasks {
				if t.ID != action.TaskID {
					kept = append(kept, t)
				}
			}
			col.Tasks = kept
			return col
		})
	case ActionMoveTask:
		return r.move(state, action.TaskID, action.ToColumn)
	case ActionSetTasks:
		return action.Columns
	default:
		return mapColumns(state, func(col Column) Column { return col })
	}
}

// move removes the first occurrence of the task by column iteration order,
// rewrites its status and timestamp, and appends it to the target column. An
// unknown id leaves the state unchanged.
func (r Reducer) move(state []Column, taskID string, to domain.Status) []Column {
	var moved *domain.Task
	next := mapColumns(state, func(col Column) Column {
		if moved != nil {
			return col
		}
		for i, t := range col.Tasks {
			if t.ID == taskID {
				t.Status = to
				t.UpdatedAt = r.now()
				moved = &t
				col.Tasks = append(col.Tasks[:i], col.Tasks[i+1:]...)
				break
			}
		}
		return col
	})
	if moved == nil {
		return next
	}
	for i := range next {
		if next[i].ID == to {
			next[i].Tasks = append(next[i].Tasks, *moved)
		}
	}
	return next
}

// mapColumns copies the state column by column, handing each transform a
// column whose task slice is safe to mutate.
func mapColumns(state []Column, fn func(Column) Column) []Column {
	next := make([]Column, len(state))
	for i, col := range state {
		copied := Column{ID: col.ID, Title: col.Title, Tasks: make([]domain.Task, len(col.Tasks))}
		copy(copied.Tasks, col.Tasks)
		next[i] = fn(copied)
	}
	return next
}
