package orderstatus

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
	Created   Status
	InKitchen Status
	Preparing Status
	Ready     Status
	Delivered Status
	Closed    Status
	Cancelled Status
}

var Statuses = Enum{
	Created:   Status{Name: "created"},
	InKitchen: Status{Name: "in_kitchen"},
	Preparing: Status{Name: "preparing"},
	Ready:     Status{Name: "ready"},
	Delivered: Status{Name: "delivered"},
	Closed:    Status{Name: "closed"},
	Cancelled: Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Created,
	Statuses.InKitchen,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.Delivered,
	Statuses.Closed,
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

// Open reports whether the status still admits activity on the order.
// Closed and cancelled orders are terminal.
func Open(name string) bool {
	return name != Statuses.Closed.Name && name != Statuses.Cancelled.Name
}
