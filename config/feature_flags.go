package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles per school.
// Supports gradual rollout by school, explicit school targeting and overrides.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// schoolID -> feature -> enabled
	schoolOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100). Schools are bucketed by a hash of their ID.
	RolloutPercent int

	// TargetSchools restricts the feature to these schools. Empty means all.
	TargetSchools []string

	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	SchoolID string
	UserID   string
	IsAdmin  bool
}

// Predefined feature flag names.
const (
	FeatureTeacherDirectClose = "closing.teacher_direct_close" // Pending → Closed by the teacher
	FeatureRectification      = "closing.rectification"        // Rectification requests on closed periods
	FeatureReportCardCache    = "cache.report_card"            // Cache report cards in Redis
)

// LoadFeatureFlags loads feature flags with defaults and environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		schoolOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureTeacherDirectClose] = &Feature{
		Name:           FeatureTeacherDirectClose,
		Description:    "Teachers may close a complete period without coordinator validation",
		Enabled:        true,
		RolloutPercent: 100,
	}
	ff.features[FeatureRectification] = &Feature{
		Name:           FeatureRectification,
		Description:    "Rectification requests against closed periods",
		Enabled:        true,
		RolloutPercent: 100,
	}
	ff.features[FeatureReportCardCache] = &Feature{
		Name:           FeatureReportCardCache,
		Description:    "Serve report cards from the Redis cache",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_CLOSING_TEACHER_DIRECT_CLOSE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "closing.rectification" -> "FEATURE_CLOSING_RECTIFICATION"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.SchoolID != "" {
		if overrides, ok := ff.schoolOverrides[ctx.SchoolID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	if ctx != nil && ctx.IsAdmin {
		return true
	}
	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetSchools) > 0 && ctx != nil && ctx.SchoolID != "" {
		match := false
		for _, s := range feature.TargetSchools {
			if s == ctx.SchoolID {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.SchoolID != "" {
		return isInRollout(ctx.SchoolID, featureName, feature.RolloutPercent)
	}
	return feature.RolloutPercent > 0
}

// EnabledForSchool is IsEnabled for a school without a user.
func (ff *FeatureFlags) EnabledForSchool(featureName, schoolID string) bool {
	return ff.IsEnabled(featureName, &FeatureContext{SchoolID: schoolID})
}

// isInRollout buckets a school consistently for a feature.
func isInRollout(schoolID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(schoolID))
	return int(h.Sum32()%100) < percent
}

// SetSchoolOverride forces a feature on or off for one school.
func (ff *FeatureFlags) SetSchoolOverride(schoolID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.schoolOverrides[schoolID]; !ok {
		ff.schoolOverrides[schoolID] = make(map[string]bool)
	}
	ff.schoolOverrides[schoolID][featureName] = enabled
}

// ClearSchoolOverrides removes all overrides for a school.
func (ff *FeatureFlags) ClearSchoolOverrides(schoolID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.schoolOverrides, schoolID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
