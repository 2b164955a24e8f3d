package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfolio/riskapi/internal/dataload"
)

const reloadTimeout = 2 * time.Minute

// DatasetReloadJob refreshes the input tables from disk. A failed reload
// keeps the previous snapshot serving.
type DatasetReloadJob struct {
	provider *dataload.Provider
	log      zerolog.Logger
}

// NewDatasetReloadJob creates the nightly reload job.
func NewDatasetReloadJob(provider *dataload.Provider, log zerolog.Logger) *DatasetReloadJob {
	return &DatasetReloadJob{
		provider: provider,
		log:      log.With().Str("job", "dataset_reload").Logger(),
	}
}

// Name returns the job name.
func (j *DatasetReloadJob) Name() string {
	return "dataset_reload"
}

// Run reloads the dataset.
func (j *DatasetReloadJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	return j.provider.Reload(ctx)
}
