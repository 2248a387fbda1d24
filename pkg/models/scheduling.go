package models

// SchedulingIssueType classifies why a pod or node shows up in scheduling findings.
type SchedulingIssueType string

const (
	SchedulingPending      SchedulingIssueType = "PENDING"
	SchedulingFailed       SchedulingIssueType = "FAILED"
	SchedulingOverCapacity SchedulingIssueType = "OVER_CAPACITY"
)

// SchedulingIssue describes a pending/failed pod or an over-capacity node.
type SchedulingIssue struct {
	Type      SchedulingIssueType
	Namespace string
	Name      string
	Node      string
	Reason    string
	Requests  Resources
}
