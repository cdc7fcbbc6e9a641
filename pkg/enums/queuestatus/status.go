package queuestatus

import "strings"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Pending    Status
	InProgress Status
	Ready      Status
	Served     Status
	Cancelled  Status
}

var Statuses = Enum{
	Pending:    Status{Name: "pending"},
	InProgress: Status{Name: "in_progress"},
	Ready:      Status{Name: "ready"},
	Served:     Status{Name: "served"},
	Cancelled:  Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.InProgress,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Cancelled,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Done reports whether the entry no longer needs kitchen work.
func Done(name string) bool {
	return name == Statuses.Ready.Name || name == Statuses.Served.Name
}
