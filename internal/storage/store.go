package storage

import (
	"context"

	"github.com/pyaritra/prospector/internal/model"
)

// Store defines persistence operations for fitting-run results.
type Store interface {
	Init(ctx context.Context) error
	SaveFitResult(ctx context.Context, result model.FitResult) error
	GetFitResult(ctx context.Context, runID string) (model.FitResult, bool, error)
	ListFitResultIDs(ctx context.Context) ([]string, error)
	DeleteFitResult(ctx context.Context, runID string) error
	SaveBestTheta(ctx context.Context, runID string, theta []float64) error
	GetBestTheta(ctx context.Context, runID string) ([]float64, bool, error)
}
