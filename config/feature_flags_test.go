package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.EnabledForSchool(FeatureTeacherDirectClose, "school-1"))
	assert.True(t, ff.EnabledForSchool(FeatureRectification, "school-1"))
	assert.False(t, ff.EnabledForSchool("unknown.feature", "school-1"))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_CLOSING_TEACHER_DIRECT_CLOSE", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.EnabledForSchool(FeatureTeacherDirectClose, "school-1"))
	assert.True(t, ff.IsEnabled(FeatureTeacherDirectClose, &FeatureContext{SchoolID: "school-1", IsAdmin: true}))
}

func TestFeatureFlags_SchoolOverride(t *testing.T) {
	ff := LoadFeatureFlags()
	ff.SetSchoolOverride("school-2", FeatureRectification, false)

	assert.False(t, ff.EnabledForSchool(FeatureRectification, "school-2"))
	assert.True(t, ff.EnabledForSchool(FeatureRectification, "school-1"))

	ff.ClearSchoolOverrides("school-2")
	assert.True(t, ff.EnabledForSchool(FeatureRectification, "school-2"))
}

func TestFeatureFlags_Rollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureReportCardCache))
	assert.False(t, ff.EnabledForSchool(FeatureReportCardCache, "school-1"))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureReportCardCache, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)

	require.NoError(t, ff.SetRolloutPercent(FeatureReportCardCache, 50))
	first := ff.EnabledForSchool(FeatureReportCardCache, "school-9")
	assert.Equal(t, first, ff.EnabledForSchool(FeatureReportCardCache, "school-9"))
}
