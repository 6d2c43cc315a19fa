// Package event defines the closed set of domain events produced by the
// Account aggregate. Events are immutable once created; the event store and
// the projection consumer both switch on the Subject tag so new variants
// must be wired through Decode as well.
package event

import (
	"encoding/json"
	"fmt"
)

// Bus subjects, shared by publisher and consumer.
const (
	SubjectUserCreated = "UserCreated"
	SubjectUserLogin   = "UserLogin"
	SubjectUserDeleted = "UserDeleted"
)

// Event is a domain event scoped to a single aggregate.
type Event interface {
	AggregateID() string
	Subject() string
}

// AccountCreated records a new account. The password field carries the
// bcrypt hash, never the raw secret.
type AccountCreated struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Profile  string `json:"profile"`
	Active   bool   `json:"active"`
}

func (e AccountCreated) AggregateID() string { return e.ID }
func (e AccountCreated) Subject() string     { return SubjectUserCreated }

// UserAuthenticated records a successful login for audit purposes.
type UserAuthenticated struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IP     string `json:"ip"`
	Device string `json:"device"`
}

func (e UserAuthenticated) AggregateID() string { return e.ID }
func (e UserAuthenticated) Subject() string     { return SubjectUserLogin }

// AccountDeleted records the removal of an account.
type AccountDeleted struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (e AccountDeleted) AggregateID() string { return e.ID }
func (e AccountDeleted) Subject() string     { return SubjectUserDeleted }

// Decode rebuilds a concrete event from its subject tag and JSON payload.
func Decode(subject string, data []byte) (Event, error) {
	switch subject {
	case SubjectUserCreated:
		var e AccountCreated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", subject, err)
		}
		return e, nil
	case SubjectUserLogin:
		var e UserAuthenticated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", subject, err)
		}
		return e, nil
	case SubjectUserDeleted:
		var e AccountDeleted
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", subject, err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown event subject %q", subject)
}
