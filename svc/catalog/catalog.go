package catalog

import (
	"strings"
	"time"
)

// Renovation values of a plan.
const (
	RenovationActive   = "Active"
	RenovationInactive = "Inactive"
)

// PeriodUnspecified marks a synced plan whose billing period Play did not
// report.
const PeriodUnspecified = "unspecified"

// Subscription is a catalog entry describing a sellable subscription product
// and its plans.
type Subscription struct {
	ID             string
	SubscriptionID string
	Name           string
	Status         string
	Platform       string
	Benefits       []string
	Plans          []Plan
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Plan is one billing option of a Subscription.
type Plan struct {
	Name       string
	PlanID     string
	Status     string
	Countries  []any
	Period     string
	Renovation string
	Tags       []string
	PaypalID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Plan returns the plan with the given id.
func (s *Subscription) Plan(planID string) (Plan, bool) {
	for _, p := range s.Plans {
		if p.PlanID == planID {
			return p, true
		}
	}
	return Plan{}, false
}

func (s *Subscription) trim() {
	s.SubscriptionID = strings.TrimSpace(s.SubscriptionID)
	s.Name = strings.TrimSpace(s.Name)
	s.Status = strings.TrimSpace(s.Status)
	s.Platform = strings.TrimSpace(s.Platform)
	for i := range s.Benefits {
		s.Benefits[i] = strings.TrimSpace(s.Benefits[i])
	}
	for i := range s.Plans {
		p := &s.Plans[i]
		p.Name = strings.TrimSpace(p.Name)
		p.PlanID = strings.TrimSpace(p.PlanID)
		p.Status = strings.TrimSpace(p.Status)
		p.Period = strings.TrimSpace(p.Period)
		p.Renovation = strings.TrimSpace(p.Renovation)
		p.PaypalID = strings.TrimSpace(p.PaypalID)
	}
}

func (s *Subscription) validate() error {
	if s.SubscriptionID == "" || s.Name == "" || s.Status == "" || s.Platform == "" {
		return ErrMissingField
	}
	seen := make(map[string]struct{}, len(s.Plans))
	for _, p := range s.Plans {
		if p.Name == "" || p.PlanID == "" || p.Status == "" || p.Period == "" || p.Renovation == "" {
			return ErrMissingPlanField
		}
		if _, ok := seen[p.PlanID]; ok {
			return ErrDuplicatePlan
		}
		seen[p.PlanID] = struct{}{}
	}
	return nil
}

func (s *Subscription) clone() *Subscription {
	c := *s
	c.Benefits = append([]string(nil), s.Benefits...)
	c.Plans = make([]Plan, len(s.Plans))
	for i, p := range s.Plans {
		p.Countries = append([]any(nil), p.Countries...)
		p.Tags = append([]string(nil), p.Tags...)
		c.Plans[i] = p
	}
	return &c
}
