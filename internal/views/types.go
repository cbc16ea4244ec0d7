package views

// DefaultDateFormat is the date format used when rendering due dates.
const DefaultDateFormat = "2006-01-02 15:04"

// AllSentinel disables a criterion, mirroring the "all" option of a picker.
const AllSentinel = "all"

// Window restricts tasks to a span of time around now.
type Window string

const (
	WindowAll     Window = "all"
	WindowToday   Window = "today"
	WindowWeek    Window = "week"
	WindowOverdue Window = "overdue"
)

// Windows lists the accepted time windows.
var Windows = []Window{WindowAll, WindowToday, WindowWeek, WindowOverdue}

// SortKey selects the ordering of a filtered result.
type SortKey string

const (
	// SortDue puts active tasks first by ascending due, then completed tasks.
	SortDue SortKey = "due"
	// SortManual keeps the store's (reorderable) order.
	SortManual   SortKey = "manual"
	SortPriority SortKey = "priority"
	SortCreated  SortKey = "created"
)

// SortKeys lists the accepted sort keys.
var SortKeys = []SortKey{SortDue, SortManual, SortPriority, SortCreated}

// Criteria narrows a task list. Empty or "all" fields match everything and
// all set fields must match.
type Criteria struct {
	Search   string  `json:"search,omitempty" yaml:"search,omitempty"`
	Category string  `json:"category,omitempty" yaml:"category,omitempty"`
	Priority string  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Tag      string  `json:"tag,omitempty" yaml:"tag,omitempty"`
	Window   Window  `json:"window,omitempty" yaml:"window,omitempty"`
	Sort     SortKey `json:"sort,omitempty" yaml:"sort,omitempty"`
}

func disabled(v string) bool {
	return v == "" || v == AllSentinel
}
