package marketingimage

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusGenerated Status = "GENERATED"
	StatusReviewing Status = "REVIEWING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusRemoved   Status = "REMOVED"
)

var transitions = map[Status][]Status{
	StatusGenerated: {StatusReviewing, StatusRemoved},
	StatusReviewing: {StatusAccepted, StatusRejected, StatusRemoved},
	StatusAccepted:  {StatusRemoved},
	StatusRejected:  {StatusGenerated, StatusRemoved},
	StatusRemoved:   {},
}

// ParseStatus accepts any casing and rejects unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

func (s Status) IsTerminal() bool { return s == StatusRemoved }

// CanTransitionTo reports whether the transition table allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
