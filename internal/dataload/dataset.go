package dataload

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/riskapi/internal/domain"
)

// Dataset is one immutable snapshot of every input table.
type Dataset struct {
	CMA         []domain.AssetAssumption
	Correlation *domain.NamedMatrix
	Returns     *domain.ReturnTable
	Betas       *domain.BetaMatrix
	FactorCov   *domain.NamedMatrix
	LoadedAt    time.Time
}

// AssetByName looks up a CMA row case-sensitively.
func (d *Dataset) AssetByName(name string) (domain.AssetAssumption, bool) {
	for _, a := range d.CMA {
		if a.Name == name {
			return a, true
		}
	}
	return domain.AssetAssumption{}, false
}

// Buckets returns the asset -> bucket mapping from the CMA table.
func (d *Dataset) Buckets() map[string]string {
	out := make(map[string]string, len(d.CMA))
	for _, a := range d.CMA {
		out[a.Name] = a.Bucket
	}
	return out
}

// Provider holds the current dataset and swaps it atomically on reload.
// Readers always see a complete snapshot.
type Provider struct {
	loader *Loader
	log    zerolog.Logger

	mu      sync.RWMutex
	current *Dataset
}

// NewProvider wraps a loader. Call Reload before serving.
func NewProvider(loader *Loader, log zerolog.Logger) *Provider {
	return &Provider{
		loader: loader,
		log:    log.With().Str("component", "data_provider").Logger(),
	}
}

// Current returns the active snapshot, or nil before the first load.
func (p *Provider) Current() *Dataset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Reload loads all five input tables concurrently and swaps the snapshot in
// one step. A failed reload leaves the previous snapshot in place.
func (p *Provider) Reload(ctx context.Context) error {
	start := time.Now()
	next := &Dataset{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		next.CMA, err = p.loader.LoadCMA()
		return err
	})
	g.Go(func() error {
		var err error
		next.Correlation, err = p.loader.LoadCorrelation()
		return err
	})
	g.Go(func() error {
		var err error
		next.Returns, err = p.loader.LoadReturns()
		return err
	})
	g.Go(func() error {
		var err error
		next.Betas, err = p.loader.LoadBetas()
		return err
	})
	g.Go(func() error {
		var err error
		next.FactorCov, err = p.loader.LoadFactorCov()
		return err
	})
	if err := g.Wait(); err != nil {
		p.log.Error().Err(err).Msg("Data reload failed, keeping previous snapshot")
		return err
	}
	next.LoadedAt = time.Now()

	if p.loader.store != nil {
		if err := p.loader.store.SaveReturns(next.Returns); err != nil {
			// Cache write failures are not fatal: the snapshot is valid.
			p.log.Warn().Err(err).Msg("Failed to cache return series")
		}
	}

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	p.log.Info().
		Int("assets", len(next.CMA)).
		Int("return_periods", next.Returns.NumPeriods()).
		Int("securities", len(next.Betas.Securities)).
		Dur("elapsed", time.Since(start)).
		Msg("Dataset reloaded")
	return nil
}
