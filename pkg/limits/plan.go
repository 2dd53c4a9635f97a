package limits

import (
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

// Plan is a subscription tier with its resource limits and features.
type Plan struct {
	ID          string             `yaml:"id" json:"id"`
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description,omitempty"`
	Limits      map[Resource]int64 `yaml:"limits" json:"limits"`
	Features    []Feature          `yaml:"features" json:"features"`
	Public      bool               `yaml:"public" json:"public"`
	TrialDays   int                `yaml:"trial_days" json:"trial_days"`
}

// Limit returns the plan limit for res; resources the plan does not list
// are unlimited.
func (p Plan) Limit(res Resource) int64 {
	if v, ok := p.Limits[res]; ok {
		return v
	}
	return Unlimited
}

// HasFeature reports whether f is part of the plan.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// TrialEndsAt returns when a trial started at startedAt ends. Plans without
// a trial return startedAt.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// TenantLimits converts plan limits into the ceilings stored on a tenant.
func (p Plan) TenantLimits() tenant.Limits {
	return tenant.Limits{
		MaxUsers:     p.Limit(ResourceUsers),
		MaxPatients:  p.Limit(ResourcePatients),
		MaxStorageGB: p.Limit(ResourceStorage),
	}
}

// Apply sets the plan id and its limits on t.
func (p Plan) Apply(t *tenant.Tenant) {
	t.Plan = p.ID
	t.Limits = p.TenantLimits()
}

func (p Plan) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan without id", ErrInvalidPlanConfiguration)
	}
	for res, limit := range p.Limits {
		if !slices.Contains(Resources(), res) {
			return fmt.Errorf("%w: plan %q: unknown resource %q", ErrInvalidPlanConfiguration, p.ID, res)
		}
		if limit < Unlimited {
			return fmt.Errorf("%w: plan %q: negative limit for %q", ErrInvalidPlanConfiguration, p.ID, res)
		}
	}
	if p.TrialDays < 0 {
		return fmt.Errorf("%w: plan %q: negative trial days", ErrInvalidPlanConfiguration, p.ID)
	}
	return nil
}

// ResourceChange is a limit moving between plans.
type ResourceChange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// PlanComparison summarises what changes when moving between plans.
type PlanComparison struct {
	NewFeatures     []Feature                   `json:"new_features"`
	LostFeatures    []Feature                   `json:"lost_features"`
	IncreasedLimits map[Resource]ResourceChange `json:"increased_limits"`
	DecreasedLimits map[Resource]ResourceChange `json:"decreased_limits"`
}

// IsDowngrade reports whether any limit shrinks or any feature is lost.
func (c PlanComparison) IsDowngrade() bool {
	return len(c.DecreasedLimits) > 0 || len(c.LostFeatures) > 0
}

// ComparePlans diffs current against target. Unlisted resources count as
// unlimited.
func ComparePlans(current, target Plan) PlanComparison {
	c := PlanComparison{
		IncreasedLimits: make(map[Resource]ResourceChange),
		DecreasedLimits: make(map[Resource]ResourceChange),
	}

	for _, f := range target.Features {
		if !current.HasFeature(f) {
			c.NewFeatures = append(c.NewFeatures, f)
		}
	}
	for _, f := range current.Features {
		if !target.HasFeature(f) {
			c.LostFeatures = append(c.LostFeatures, f)
		}
	}

	for _, res := range Resources() {
		from, to := current.Limit(res), target.Limit(res)
		if from == to {
			continue
		}
		change := ResourceChange{From: from, To: to}
		switch {
		case to == Unlimited:
			c.IncreasedLimits[res] = change
		case from == Unlimited, to < from:
			c.DecreasedLimits[res] = change
		default:
			c.IncreasedLimits[res] = change
		}
	}
	return c
}
