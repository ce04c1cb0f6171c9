package validation

import (
	"fmt"

	"github.com/yourorg/aquamonitor/internal/domain"
)

// Failure is a single rule violation on a named field
type Failure struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Rule checks one aspect of an entity and returns zero or more failures
type Rule[T any] func(T) []Failure

// RuleSet validates a single entity type. Rules run in registration order
// and every violation is reported, not just the first; evaluation order
// affects only enumeration order of the result.
type RuleSet[T any] struct {
	rules []Rule[T]
}

// NewRuleSet creates an empty rule set
func NewRuleSet[T any]() *RuleSet[T] {
	return &RuleSet[T]{}
}

// Add appends a rule and returns the set for chaining
func (rs *RuleSet[T]) Add(rule Rule[T]) *RuleSet[T] {
	rs.rules = append(rs.rules, rule)
	return rs
}

// Validate runs all rules. An empty result authorizes persistence; a
// non-empty result must prevent any store mutation.
func (rs *RuleSet[T]) Validate(entity T) []Failure {
	var failures []Failure
	for _, rule := range rs.rules {
		failures = append(failures, rule(entity)...)
	}
	return failures
}

func required(field, value string) []Failure {
	if value == "" {
		return []Failure{{Field: field, Message: field + " is required"}}
	}
	return nil
}

// Users validates users prior to persistence
func Users() *RuleSet[*domain.User] {
	return NewRuleSet[*domain.User]().
		Add(func(u *domain.User) []Failure { return required("username", u.Username) }).
		Add(func(u *domain.User) []Failure { return required("email", u.Email) }).
		Add(func(u *domain.User) []Failure {
			if len(u.Username) > 64 {
				return []Failure{{Field: "username", Message: "username must be at most 64 characters"}}
			}
			return nil
		})
}

// Aquariums validates aquariums prior to persistence
func Aquariums() *RuleSet[*domain.Aquarium] {
	return NewRuleSet[*domain.Aquarium]().
		Add(func(a *domain.Aquarium) []Failure { return required("name", a.Name) }).
		Add(func(a *domain.Aquarium) []Failure {
			if a.Volume < 0 {
				return []Failure{{Field: "volume", Message: "volume must not be negative"}}
			}
			return nil
		})
}

// Measurements validates measurements prior to persistence
func Measurements() *RuleSet[*domain.Measurement] {
	return NewRuleSet[*domain.Measurement]().
		Add(func(m *domain.Measurement) []Failure { return required("kind", m.Kind) }).
		Add(func(m *domain.Measurement) []Failure {
			if m.TakenAt.IsZero() {
				return []Failure{{Field: "takenAt", Message: "takenAt is required"}}
			}
			return nil
		}).
		Add(func(m *domain.Measurement) []Failure {
			if m.Kind == "ph" && (m.Value < 0 || m.Value > 14) {
				return []Failure{{Field: "value", Message: fmt.Sprintf("ph value %.2f out of range 0-14", m.Value)}}
			}
			return nil
		})
}

// WaterChanges validates water changes prior to persistence
func WaterChanges() *RuleSet[*domain.WaterChange] {
	return NewRuleSet[*domain.WaterChange]().
		Add(func(wc *domain.WaterChange) []Failure {
			if wc.Litres <= 0 {
				return []Failure{{Field: "litres", Message: "litres must be positive"}}
			}
			return nil
		}).
		Add(func(wc *domain.WaterChange) []Failure {
			if wc.ChangedAt.IsZero() {
				return []Failure{{Field: "changedAt", Message: "changedAt is required"}}
			}
			return nil
		})
}
