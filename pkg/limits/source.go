package limits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Source loads plan definitions.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (map[string]Plan, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (map[string]Plan, error) { return f(ctx) }

// NewMemorySource serves a fixed set of plans.
func NewMemorySource(plans ...Plan) Source {
	return SourceFunc(func(context.Context) (map[string]Plan, error) {
		out := make(map[string]Plan, len(plans))
		for _, p := range plans {
			p.Limits = maps.Clone(p.Limits)
			p.Features = slices.Clone(p.Features)
			out[p.ID] = p
		}
		return out, nil
	})
}

type yamlCatalog struct {
	Plans []Plan `yaml:"plans"`
}

// ParseYAML reads plans from a document of the form:
//
//	plans:
//	  - id: basic
//	    name: Basic
//	    trial_days: 30
//	    limits: {users: 5, patients: 100, storage: 1}
//	    features: [sms]
func ParseYAML(r io.Reader) (map[string]Plan, error) {
	var doc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	out := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if _, dup := out[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidPlanConfiguration, p.ID)
		}
		out[p.ID] = p
	}
	return out, nil
}

// NewYAMLFileSource reads plans from path on every Load.
func NewYAMLFileSource(path string) Source {
	return SourceFunc(func(context.Context) (map[string]Plan, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadPlans, err)
		}
		defer f.Close()
		return ParseYAML(f)
	})
}

// DefaultPlans is the stock catalog: basic, premium and enterprise.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID: "basic", Name: "Basic", Public: true, TrialDays: 30,
			Limits: map[Resource]int64{ResourceUsers: 5, ResourcePatients: 100, ResourceStorage: 1},
		},
		{
			ID: "premium", Name: "Premium", Public: true, TrialDays: 30,
			Limits:   map[Resource]int64{ResourceUsers: 20, ResourcePatients: 500, ResourceStorage: 5},
			Features: []Feature{FeatureSMS, FeatureWhatsApp},
		},
		{
			ID: "enterprise", Name: "Enterprise",
			Limits:   map[Resource]int64{ResourceUsers: 100, ResourcePatients: 2000, ResourceStorage: 20},
			Features: []Feature{FeatureSMS, FeatureWhatsApp, FeatureVideoCalls, FeatureCustomDomain, FeatureAPIAccess},
		},
	}
}

// Catalog is an immutable, validated set of plans.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads and validates plans from src.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	for _, p := range plans {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}
	return &Catalog{plans: plans}, nil
}

// Get returns the plan with id.
func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// List returns all plans sorted by id.
func (c *Catalog) List() []Plan {
	out := slices.Collect(maps.Values(c.plans))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
