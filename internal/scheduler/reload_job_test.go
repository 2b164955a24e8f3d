package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskapi/internal/dataload"
)

func TestDatasetReloadJob(t *testing.T) {
	loader := dataload.NewLoader(t.TempDir(), nil, zerolog.Nop())
	provider := dataload.NewProvider(loader, zerolog.Nop())

	job := NewDatasetReloadJob(provider, zerolog.Nop())
	assert.Equal(t, "dataset_reload", job.Name())

	require.NoError(t, job.Run())
	assert.NotNil(t, provider.Current())
}
