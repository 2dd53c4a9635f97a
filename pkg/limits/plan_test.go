package limits_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

func defaultCatalog(t *testing.T) *limits.Catalog {
	t.Helper()
	c, err := limits.NewCatalog(context.Background(), limits.NewMemorySource(limits.DefaultPlans()...))
	require.NoError(t, err)
	return c
}

func TestPlan(t *testing.T) {
	t.Parallel()
	catalog := defaultCatalog(t)

	basic, err := catalog.Get("basic")
	require.NoError(t, err)
	assert.Equal(t, tenant.Limits{MaxUsers: 5, MaxPatients: 100, MaxStorageGB: 1}, basic.TenantLimits())

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, start.AddDate(0, 0, 30), basic.TrialEndsAt(start))

	enterprise, err := catalog.Get("enterprise")
	require.NoError(t, err)
	assert.Equal(t, start, enterprise.TrialEndsAt(start))
	assert.True(t, enterprise.HasFeature(limits.FeatureCustomDomain))

	tn := &tenant.Tenant{Plan: "basic"}
	enterprise.Apply(tn)
	assert.Equal(t, "enterprise", tn.Plan)
	assert.Equal(t, int64(100), tn.Limits.MaxUsers)

	open := limits.Plan{ID: "open"}
	assert.Equal(t, limits.Unlimited, open.Limit(limits.ResourcePatients))

	_, err = catalog.Get("platinum")
	assert.ErrorIs(t, err, limits.ErrPlanNotFound)

	ids := make([]string, 0, 3)
	for _, p := range catalog.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"basic", "enterprise", "premium"}, ids)
}

func TestComparePlans(t *testing.T) {
	t.Parallel()
	catalog := defaultCatalog(t)
	basic, _ := catalog.Get("basic")
	premium, _ := catalog.Get("premium")

	up := limits.ComparePlans(basic, premium)
	assert.False(t, up.IsDowngrade())
	assert.ElementsMatch(t, []limits.Feature{limits.FeatureSMS, limits.FeatureWhatsApp}, up.NewFeatures)
	assert.Equal(t, limits.ResourceChange{From: 5, To: 20}, up.IncreasedLimits[limits.ResourceUsers])

	down := limits.ComparePlans(premium, basic)
	assert.True(t, down.IsDowngrade())
	assert.Equal(t, limits.ResourceChange{From: 500, To: 100}, down.DecreasedLimits[limits.ResourcePatients])

	unlimited := limits.Plan{ID: "unlimited"}
	toUnlimited := limits.ComparePlans(basic, unlimited)
	assert.Len(t, toUnlimited.IncreasedLimits, 3)
	fromUnlimited := limits.ComparePlans(unlimited, basic)
	assert.Len(t, fromUnlimited.DecreasedLimits, 3)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		t.Parallel()
		doc := `
plans:
  - id: basic
    name: Basic
    public: true
    trial_days: 14
    limits: {users: 3, patients: 50, storage: 1}
  - id: clinic-plus
    name: Clinic Plus
    limits: {users: -1, patients: 1000}
    features: [sms, video_calls]
`
		plans, err := limits.ParseYAML(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, plans, 2)

		assert.Equal(t, 14, plans["basic"].TrialDays)
		assert.Equal(t, int64(50), plans["basic"].Limits[limits.ResourcePatients])
		assert.Equal(t, limits.Unlimited, plans["clinic-plus"].Limit(limits.ResourceUsers))
		assert.True(t, plans["clinic-plus"].HasFeature(limits.FeatureVideoCalls))

		_, err = limits.NewCatalog(context.Background(), limits.SourceFunc(func(context.Context) (map[string]limits.Plan, error) {
			return plans, nil
		}))
		assert.NoError(t, err)
	})

	t.Run("duplicate ids", func(t *testing.T) {
		t.Parallel()
		_, err := limits.ParseYAML(strings.NewReader("plans:\n  - id: a\n  - id: a\n"))
		assert.ErrorIs(t, err, limits.ErrInvalidPlanConfiguration)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := limits.ParseYAML(strings.NewReader("plans: [\n"))
		assert.ErrorIs(t, err, limits.ErrFailedToLoadPlans)
	})

	t.Run("unknown resource fails validation", func(t *testing.T) {
		t.Parallel()
		_, err := limits.NewCatalog(context.Background(), limits.NewMemorySource(limits.Plan{
			ID:     "odd",
			Limits: map[limits.Resource]int64{"rooms": 3},
		}))
		assert.ErrorIs(t, err, limits.ErrInvalidPlanConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := limits.NewCatalog(context.Background(), limits.NewYAMLFileSource("/nonexistent/plans.yaml"))
		assert.ErrorIs(t, err, limits.ErrFailedToLoadPlans)
	})
}
