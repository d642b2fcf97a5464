package record

import "fmt"

// Task records the chain of one symbol and expiry.
type Task struct {
	Symbol      string
	ExpiryIndex int
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%d", t.Symbol, t.ExpiryIndex)
}

// Tasks expands symbols × expiry indexes in the order given.
func Tasks(symbols []string, expiryIndexes ...int) []Task {
	if len(expiryIndexes) == 0 {
		expiryIndexes = []int{0}
	}
	tasks := make([]Task, 0, len(symbols)*len(expiryIndexes))
	for _, s := range symbols {
		for _, i := range expiryIndexes {
			tasks = append(tasks, Task{Symbol: s, ExpiryIndex: i})
		}
	}
	return tasks
}

type TaskResult struct {
	Task     Task
	Success  bool
	NotFound bool
	Path     string
	Bytes    int64
	Error    error
}
