package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/school-hub/gradebook/config"
	"github.com/school-hub/gradebook/internal/application/command"
	"github.com/school-hub/gradebook/internal/application/query"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/redis"
	"github.com/school-hub/gradebook/pkg/logger"
)

// options are the parsed flags of a subcommand.
type options struct {
	student    string
	class      string
	assignment string
	period     string
	actor      string
	year       int

	status   bool
	rollback bool
}

type subcommand struct {
	// required lists the flags that must be non-empty.
	required []string
	define   func(fs *flag.FlagSet, o *options)
	run      func(ctx context.Context, a *app, o options) error
}

var stdout io.Writer = os.Stdout

var subcommands = map[string]subcommand{
	"migrate": {
		define: func(fs *flag.FlagSet, o *options) {
			fs.BoolVar(&o.status, "status", false, "list migrations and exit")
			fs.BoolVar(&o.rollback, "rollback", false, "roll back the last applied migration")
		},
		run: runMigrate,
	},
	"period-average": {
		required: []string{"student", "class", "assignment", "period"},
		define:   scopeFlags(true),
		run:      runPeriodAverage,
	},
	"class-period-averages": {
		required: []string{"class", "assignment", "period"},
		define:   scopeFlags(false),
		run:      runClassPeriodAverages,
	},
	"completeness": {
		required: []string{"class", "assignment", "period"},
		define:   scopeFlags(false),
		run:      runCompleteness,
	},
	"bulk-close": {
		required: []string{"class", "assignment"},
		define: func(fs *flag.FlagSet, o *options) {
			fs.StringVar(&o.class, "class", "", "class group id")
			fs.StringVar(&o.assignment, "assignment", "", "teacher assignment id")
			fs.StringVar(&o.actor, "actor", "", "user id recorded in the audit stamps")
		},
		run: runBulkClose,
	},
	"final-results": {
		required: []string{"class", "year"},
		define: func(fs *flag.FlagSet, o *options) {
			fs.StringVar(&o.class, "class", "", "class group id")
			fs.StringVar(&o.student, "student", "", "only this student")
			fs.IntVar(&o.year, "year", 0, "academic year")
			fs.StringVar(&o.actor, "actor", "", "user id recorded as determiner")
		},
		run: runFinalResults,
	},
	"health": {
		run: runHealth,
	},
	"report-card": {
		required: []string{"student", "class"},
		define: func(fs *flag.FlagSet, o *options) {
			fs.StringVar(&o.student, "student", "", "student id")
			fs.StringVar(&o.class, "class", "", "class group id")
		},
		run: runReportCard,
	},
}

func scopeFlags(withStudent bool) func(fs *flag.FlagSet, o *options) {
	return func(fs *flag.FlagSet, o *options) {
		if withStudent {
			fs.StringVar(&o.student, "student", "", "student id")
		}
		fs.StringVar(&o.class, "class", "", "class group id")
		fs.StringVar(&o.assignment, "assignment", "", "teacher assignment id")
		fs.StringVar(&o.period, "period", "", "period id")
	}
}

func (c subcommand) parse(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("gradebook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if c.define != nil {
		c.define(fs, &o)
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	var missing []string
	for _, name := range c.required {
		f := fs.Lookup(name)
		if f == nil || f.Value.String() == "" || f.Value.String() == "0" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		return o, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	if o.status && o.rollback {
		return o, errors.New("-status and -rollback are mutually exclusive")
	}
	return o, nil
}

func (o options) principal() shared.Principal {
	return shared.SystemPrincipal(o.actor)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBCOMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func runMigrate(ctx context.Context, a *app, o options) error {
	migrator := postgres.NewMigrator(a.db)
	switch {
	case o.status:
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		type row struct {
			Version   int        `json:"version"`
			Name      string     `json:"name"`
			AppliedAt *time.Time `json:"applied_at,omitempty"`
		}
		rows := make([]row, 0, len(migrations))
		for _, m := range migrations {
			r := row{Version: m.Version, Name: m.Name}
			if m.IsApplied {
				at := m.AppliedAt
				r.AppliedAt = &at
			}
			rows = append(rows, r)
		}
		return printJSON(rows)
	case o.rollback:
		if err := migrator.Rollback(ctx); err != nil {
			return err
		}
		a.log.Info("last migration rolled back")
		return nil
	}

	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	a.log.Info("database schema is up to date", "applied", applied)
	return printJSON(map[string]int{"applied": applied})
}

func runPeriodAverage(ctx context.Context, a *app, o options) error {
	ctx, cancel := a.commandContext(ctx)
	defer cancel()

	res, err := a.periodAverage.Handle(ctx, command.CalculatePeriodAverageCommand{
		StudentID:           o.student,
		ClassGroupID:        o.class,
		TeacherAssignmentID: o.assignment,
		PeriodID:            o.period,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runClassPeriodAverages(ctx context.Context, a *app, o options) error {
	return a.withLock(ctx, "period-averages:"+o.class+":"+o.assignment+":"+o.period, func(ctx context.Context) error {
		res, err := a.classPeriodAverage.Handle(ctx, command.CalculateClassPeriodAveragesCommand{
			ClassGroupID:        o.class,
			TeacherAssignmentID: o.assignment,
			PeriodID:            o.period,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func runCompleteness(ctx context.Context, a *app, o options) error {
	ctx, cancel := a.commandContext(ctx)
	defer cancel()

	pc, err := a.closings.Open(ctx, command.OpenPeriodClosingCommand{
		ClassGroupID:        o.class,
		TeacherAssignmentID: o.assignment,
		PeriodID:            o.period,
	})
	if err != nil {
		return err
	}
	if _, err := a.closings.CheckCompleteness(ctx, command.CheckCompletenessCommand{ClosingID: pc.ID}); err != nil {
		return err
	}
	dto, err := a.closingQueries.Get(ctx, query.GetPeriodClosingQuery{ClosingID: pc.ID})
	if err != nil {
		return err
	}
	return printJSON(dto)
}

func runBulkClose(ctx context.Context, a *app, o options) error {
	return a.withLock(ctx, "bulk-close:"+o.class+":"+o.assignment, func(ctx context.Context) error {
		res, err := a.closings.BulkTeacherClose(ctx, command.BulkTeacherCloseCommand{
			ClassGroupID:        o.class,
			TeacherAssignmentID: o.assignment,
			Actor:               o.principal(),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func runFinalResults(ctx context.Context, a *app, o options) error {
	if o.student != "" {
		ctx, cancel := a.commandContext(ctx)
		defer cancel()

		fr, err := a.finalResults.Handle(ctx, command.CalculateFinalResultCommand{
			StudentID:    o.student,
			ClassGroupID: o.class,
			AcademicYear: o.year,
			Actor:        o.principal(),
		})
		if err != nil {
			return err
		}
		return printJSON(fr)
	}

	return a.withLock(ctx, fmt.Sprintf("final-results:%s:%d", o.class, o.year), func(ctx context.Context) error {
		res, err := a.finalResults.HandleClass(ctx, command.CalculateClassFinalResultsCommand{
			ClassGroupID: o.class,
			AcademicYear: o.year,
			Actor:        o.principal(),
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func runReportCard(ctx context.Context, a *app, o options) error {
	ctx, cancel := a.commandContext(ctx)
	defer cancel()

	card, err := a.reportCard.Handle(ctx, query.GetReportCardQuery{StudentID: o.student, ClassGroupID: o.class})
	if err != nil {
		return err
	}
	return printJSON(card)
}

func runHealth(ctx context.Context, a *app, _ options) error {
	ctx, cancel := a.commandContext(ctx)
	defer cancel()

	db, err := a.db.Health(ctx)
	if err != nil {
		return err
	}
	var cacheErr error
	if a.cache != nil {
		cacheErr = a.cache.Ping(ctx)
	}
	report := newHealthReport(db, a.cache != nil, cacheErr, a.cfg.Features.GetAllFeatures())
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.Healthy {
		return errors.New("database is unhealthy")
	}
	return nil
}

type featureState struct {
	Enabled        bool     `json:"enabled"`
	RolloutPercent int      `json:"rollout_percent"`
	TargetSchools  []string `json:"target_schools,omitempty"`
}

type healthReport struct {
	Healthy  bool                    `json:"healthy"`
	Database *postgres.HealthStatus  `json:"database"`
	Redis    string                  `json:"redis"`
	Features map[string]featureState `json:"features"`
}

// newHealthReport is healthy when the database answers; Redis is optional and
// only reported.
func newHealthReport(db *postgres.HealthStatus, cacheEnabled bool, cacheErr error, features map[string]*config.Feature) healthReport {
	r := healthReport{
		Healthy:  db != nil && db.Healthy,
		Database: db,
		Redis:    "disabled",
		Features: make(map[string]featureState, len(features)),
	}
	switch {
	case cacheEnabled && cacheErr != nil:
		r.Redis = "unreachable: " + cacheErr.Error()
	case cacheEnabled:
		r.Redis = "ok"
	}
	for name, f := range features {
		r.Features[name] = featureState{Enabled: f.Enabled, RolloutPercent: f.RolloutPercent, TargetSchools: f.TargetSchools}
	}
	return r
}

// withLock runs fn under a Redis lock on resource so that two operators
// cannot run the same batch at once. Without Redis fn runs unguarded.
func (a *app) withLock(ctx context.Context, resource string, fn func(ctx context.Context) error) error {
	if a.cache == nil {
		return fn(ctx)
	}
	release, err := a.cache.AcquireLock(ctx, resource, uuid.NewString(), redis.TTLDistributedLock)
	switch {
	case errors.Is(err, redis.ErrLockHeld):
		return fmt.Errorf("%s is already running elsewhere", resource)
	case err != nil:
		a.log.Warn("lock unavailable, running without it", "resource", resource, logger.Err(err))
		return fn(ctx)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("failed to release lock", "resource", resource, logger.Err(err))
		}
	}()
	return fn(ctx)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
