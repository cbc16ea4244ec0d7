package views

import (
	"cmp"
	"slices"

	"kairon/backend"
)

// Sort orders tasks by key. The input slice is sorted in place and returned.
func Sort(tasks []backend.Task, key SortKey) []backend.Task {
	switch key {
	case SortManual:
		return tasks
	case SortPriority:
		slices.SortStableFunc(tasks, func(a, b backend.Task) int {
			if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
				return c
			}
			return a.Due.Compare(b.Due)
		})
	case SortCreated:
		slices.SortStableFunc(tasks, func(a, b backend.Task) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	default:
		slices.SortStableFunc(tasks, func(a, b backend.Task) int {
			if a.IsActive() != b.IsActive() {
				if a.IsActive() {
					return -1
				}
				return 1
			}
			return a.Due.Compare(b.Due)
		})
	}
	return tasks
}
