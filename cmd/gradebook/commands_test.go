package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/config"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/postgres"
)

func TestParse_ScopeFlags(t *testing.T) {
	o, err := subcommands["period-average"].parse([]string{
		"-student", "s1", "-class", "c1", "-assignment", "ta1", "-period", "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, options{student: "s1", class: "c1", assignment: "ta1", period: "p1"}, o)
}

func TestParse_MissingRequired(t *testing.T) {
	_, err := subcommands["final-results"].parse([]string{"-class", "c1"})
	assert.EqualError(t, err, "missing required flags: -year")

	_, err = subcommands["bulk-close"].parse(nil)
	assert.EqualError(t, err, "missing required flags: -class, -assignment")
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := subcommands["report-card"].parse([]string{"-period", "p1"})
	assert.Error(t, err)
}

func TestParse_MigrateExclusiveModes(t *testing.T) {
	_, err := subcommands["migrate"].parse([]string{"-status", "-rollback"})
	assert.Error(t, err)

	o, err := subcommands["migrate"].parse([]string{"-status"})
	require.NoError(t, err)
	assert.True(t, o.status)
}

func TestOptions_PrincipalDefaultsToSystem(t *testing.T) {
	assert.Equal(t, "system", options{}.principal().UserID)
	assert.Equal(t, "coord-1", options{actor: "coord-1"}.principal().UserID)
}

func TestRun_UsageErrors(t *testing.T) {
	var usage *usageError

	err := run(context.Background(), nil)
	require.ErrorAs(t, err, &usage)

	err = run(context.Background(), []string{"publish"})
	require.ErrorAs(t, err, &usage)
	assert.Contains(t, err.Error(), `unknown command "publish"`)

	err = run(context.Background(), []string{"period-average", "-class", "c1"})
	require.ErrorAs(t, err, &usage)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	require.NoError(t, printJSON(map[string]int{"applied": 2}))
	assert.JSONEq(t, `{"applied": 2}`, buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, exitCode(&usageError{msg: "usage"}))
	assert.Equal(t, exitTempFail, exitCode(fmt.Errorf("bulk close: %w", shared.ErrClosingStale)))
	assert.Equal(t, exitTempFail, exitCode(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.Equal(t, exitTempFail, exitCode(shared.ErrServiceUnavailable))
	assert.Equal(t, exitFailure, exitCode(shared.ErrClosingNotFound))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestHealthCommand_NeedsNoFlags(t *testing.T) {
	_, err := subcommands["health"].parse(nil)
	require.NoError(t, err)
}

func TestNewHealthReport(t *testing.T) {
	features := config.LoadFeatureFlags().GetAllFeatures()
	require.NotEmpty(t, features)

	r := newHealthReport(&postgres.HealthStatus{Healthy: true, MaxConns: 10}, false, nil, features)
	assert.True(t, r.Healthy)
	assert.Equal(t, "disabled", r.Redis)
	assert.Len(t, r.Features, len(features))
	assert.Contains(t, r.Features, config.FeatureRectification)

	r = newHealthReport(&postgres.HealthStatus{Healthy: true}, true, errors.New("dial tcp: refused"), nil)
	assert.True(t, r.Healthy, "redis is optional")
	assert.Equal(t, "unreachable: dial tcp: refused", r.Redis)

	r = newHealthReport(&postgres.HealthStatus{Error: "connection refused"}, true, nil, nil)
	assert.False(t, r.Healthy)
	assert.Equal(t, "ok", r.Redis)
}
