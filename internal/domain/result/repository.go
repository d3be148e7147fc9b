package result

import (
	"context"
)

// PeriodAverageRepository stores period averages by natural key.
type PeriodAverageRepository interface {
	// Upsert overwrites the row with the same natural key, keeping its ID.
	Upsert(ctx context.Context, avg *PeriodAverage) error

	// FindByKey returns shared.ErrPeriodAverageNotFound when absent.
	FindByKey(ctx context.Context, key PeriodAverageKey) (*PeriodAverage, error)

	// ListByStudent returns every period average of a student in a class.
	ListByStudent(ctx context.Context, studentID, classGroupID string) ([]PeriodAverage, error)
}

// FinalResultRepository stores final results by natural key.
type FinalResultRepository interface {
	// Upsert overwrites the row with the same natural key, keeping its ID.
	Upsert(ctx context.Context, fr *FinalResult) error

	// FindByKey returns shared.ErrFinalResultNotFound when absent.
	FindByKey(ctx context.Context, key FinalResultKey) (*FinalResult, error)

	// ListByClass returns every final result of a class in a year.
	ListByClass(ctx context.Context, classGroupID string, academicYear int) ([]FinalResult, error)
}
