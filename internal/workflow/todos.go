package workflow

import (
	"encoding/json"
	"fmt"
)

type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

type Todo struct {
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

type writeTodosArgs struct {
	Todos []Todo `json:"todos"`
}

// ParseTodos reads the todo list out of write_todos arguments. Unknown
// statuses are treated as pending.
func ParseTodos(args json.RawMessage) ([]Todo, error) {
	var parsed writeTodosArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, fmt.Errorf("write_todos arguments: %w", err)
	}

	out := make([]Todo, 0, len(parsed.Todos))
	for _, t := range parsed.Todos {
		switch t.Status {
		case TodoPending, TodoInProgress, TodoCompleted:
		default:
			t.Status = TodoPending
		}
		out = append(out, t)
	}
	return out, nil
}
