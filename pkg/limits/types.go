package limits

// Resource is a countable tenant resource.
type Resource string

const (
	ResourceUsers    Resource = "users"
	ResourcePatients Resource = "patients"
	// ResourceStorage is measured in whole gigabytes.
	ResourceStorage Resource = "storage"
)

// Resources lists every resource in reporting order.
func Resources() []Resource {
	return []Resource{ResourceUsers, ResourcePatients, ResourceStorage}
}

// Unlimited disables a limit.
const Unlimited int64 = -1

// Feature is a plan-level capability flag.
type Feature string

const (
	FeatureSMS          Feature = "sms"
	FeatureWhatsApp     Feature = "whatsapp"
	FeatureVideoCalls   Feature = "video_calls"
	FeatureCustomDomain Feature = "custom_domain"
	FeatureAPIAccess    Feature = "api_access"
)

// Usage is the outcome of a limit evaluation.
type Usage struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Requested int64 `json:"requested"`
	// Available is what remains after the request when allowed, and what
	// remained before it when refused. Unlimited for unlimited resources.
	Available int64 `json:"available"`
}

// Report is one resource line of a usage overview.
type Report struct {
	Current    int64   `json:"current"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// Evaluate applies the limit rule: allowed iff current+requested <= limit.
// A zero limit refuses any positive request; Unlimited always allows.
func Evaluate(current, limit, requested int64) (Usage, bool) {
	u := Usage{Current: current, Limit: limit, Requested: requested}
	if limit < 0 {
		u.Available = Unlimited
		return u, true
	}
	if current+requested <= limit {
		u.Available = limit - current - requested
		return u, true
	}
	u.Available = max(0, limit-current)
	return u, false
}

// Percentage returns current as a share of limit in percent, 0 when the
// limit is zero or unlimited.
func Percentage(current, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(current) / float64(limit) * 100
}
