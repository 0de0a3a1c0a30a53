// Package models defines pricing tier types shared across modules.
package models

import "time"

// TierKey identifies a subscription tier.
type TierKey string

const (
	// TierFree is the default tier every unknown or unpaid account resolves to.
	TierFree TierKey = "free"
	// TierPro is the paid mid tier.
	TierPro TierKey = "pro"
	// TierElite is the top tier.
	TierElite TierKey = "elite"
)

// FeatureName identifies a gated capability or numeric limit within a tier.
type FeatureName string

// Feature name constants.
const (
	FeatureCalendarIntegration   FeatureName = "calendar_integration"
	FeatureWeatherIntegration    FeatureName = "weather_integration"
	FeatureVoiceIntegration      FeatureName = "voice_integration"
	FeatureMaxUploadAnalyze      FeatureName = "max_upload_analyze"
	FeatureMaxOutfitPlansMonthly FeatureName = "max_outfit_plans_monthly"
	FeatureAgentCallsMinutes     FeatureName = "agent_calls_minutes"
)

// TierRecord describes one subscription tier's feature table.
type TierRecord struct {
	Key                   TierKey `json:"key"`
	DisplayName           string  `json:"display_name"`
	CalendarIntegration   bool    `json:"calendar_integration"`
	WeatherIntegration    bool    `json:"weather_integration"`
	MaxUploadAnalyze      int     `json:"max_upload_analyze"`
	MaxOutfitPlansMonthly int     `json:"max_outfit_plans_monthly"`
	AgentCallsMinutes     int     `json:"agent_calls_minutes"`
}

// HasFeature reports whether the named boolean capability is present.
// Voice integration has no field of its own: it is present exactly when the
// tier carries a positive agent-call minute allowance.
func (t TierRecord) HasFeature(name FeatureName) bool {
	switch name {
	case FeatureCalendarIntegration:
		return t.CalendarIntegration
	case FeatureWeatherIntegration:
		return t.WeatherIntegration
	case FeatureVoiceIntegration:
		return t.AgentCallsMinutes > 0
	default:
		return false
	}
}

// FeatureLimit returns the numeric ceiling for the named feature, or 0 when
// the name does not refer to a numeric field.
func (t TierRecord) FeatureLimit(name FeatureName) int {
	switch name {
	case FeatureMaxUploadAnalyze:
		return t.MaxUploadAnalyze
	case FeatureMaxOutfitPlansMonthly:
		return t.MaxOutfitPlansMonthly
	case FeatureAgentCallsMinutes:
		return t.AgentCallsMinutes
	default:
		return 0
	}
}

// TierInfo is the normalized descriptor the resolver hands to consumers after
// mapping a remote tier key through the local catalog.
type TierInfo struct {
	Key                TierKey    `json:"key"`
	DisplayName        string     `json:"display_name"`
	Features           TierRecord `json:"features"`
	SubscriptionActive bool       `json:"subscription_active"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// DefaultTierCatalog returns the built-in tier catalog. The remote catalog,
// when reachable, takes the same shape; this one backs the unknown-key
// fallback and offline operation.
func DefaultTierCatalog() map[TierKey]TierRecord {
	return map[TierKey]TierRecord{
		TierFree: {
			Key:                   TierFree,
			DisplayName:           "Free",
			CalendarIntegration:   false,
			WeatherIntegration:    false,
			MaxUploadAnalyze:      5,
			MaxOutfitPlansMonthly: 3,
			AgentCallsMinutes:     0,
		},
		TierPro: {
			Key:                   TierPro,
			DisplayName:           "Pro",
			CalendarIntegration:   true,
			WeatherIntegration:    true,
			MaxUploadAnalyze:      100,
			MaxOutfitPlansMonthly: 30,
			AgentCallsMinutes:     30,
		},
		TierElite: {
			Key:                   TierElite,
			DisplayName:           "Elite",
			CalendarIntegration:   true,
			WeatherIntegration:    true,
			MaxUploadAnalyze:      500,
			MaxOutfitPlansMonthly: 100,
			AgentCallsMinutes:     120,
		},
	}
}

// ResolveTierKey maps a tier key into the catalog, falling back to the free
// tier when the key is unknown. An unknown key is never an error.
func ResolveTierKey(catalog map[TierKey]TierRecord, key TierKey) TierRecord {
	if rec, ok := catalog[key]; ok {
		return rec
	}
	return catalog[TierFree]
}
