package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XinwuC/finance/internal/config"
	"github.com/XinwuC/finance/internal/models"
	"github.com/XinwuC/finance/internal/strategy"
)

// PriceHistoryStore is the persistence surface the analysis services need.
type PriceHistoryStore interface {
	GetPriceHistory(ctx context.Context, symbol string, until *time.Time) ([]models.PricePoint, error)
	ListSymbols(ctx context.Context) ([]string, error)
	SaveSignal(ctx context.Context, signal *models.OverreactSignal) error
	ListPositions(ctx context.Context) ([]models.Position, error)
}

// ResultCache caches analysis results per symbol.
type ResultCache interface {
	SetSignal(ctx context.Context, signal *models.OverreactSignal)
	LastRecommendation(ctx context.Context, symbol string) (*models.SellPriceRecommendation, bool)
	SetRecommendation(ctx context.Context, rec *models.SellPriceRecommendation)
}

// StrategyExecutor runs the configured buy-side strategies over stored price
// histories. Symbols are independent, so the scan fans out over a bounded
// worker pool.
type StrategyExecutor struct {
	cfg        *config.Config
	logger     *logrus.Logger
	store      PriceHistoryStore
	cache      ResultCache
	strategies []strategy.BuyStrategy
}

// NewStrategyExecutor builds the executor and its strategy set from the
// configured strategy list. Unknown kinds are logged and skipped.
func NewStrategyExecutor(cfg *config.Config, logger *logrus.Logger, store PriceHistoryStore, cache ResultCache) *StrategyExecutor {
	e := &StrategyExecutor{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cache:  cache,
	}
	for _, name := range cfg.Strategy.List {
		s, err := strategy.NewBuyStrategy(strategy.Kind(name), cfg.Strategy, logger)
		if err != nil {
			logger.WithError(err).Errorf("Cannot add strategy %s", name)
			continue
		}
		e.strategies = append(e.strategies, s)
		logger.Infof("Strategy %s added", s.Name())
	}
	return e
}

// Strategies returns the active strategy set.
func (e *StrategyExecutor) Strategies() []strategy.BuyStrategy {
	return e.strategies
}

// Scan analyzes the given symbols for the target date and returns all
// emitted signals sorted by symbol. An empty symbol list scans every symbol
// with stored history. Per-symbol failures are logged and skipped so one
// corrupt history does not abort the batch.
func (e *StrategyExecutor) Scan(ctx context.Context, symbols []string, targetDate *time.Time) ([]models.OverreactSignal, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = e.store.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
	}

	workers := e.cfg.Analysis.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var signals []models.OverreactSignal
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				results := e.analyzeSymbol(ctx, symbol, targetDate)
				if len(results) == 0 {
					continue
				}
				mu.Lock()
				signals = append(signals, results...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range symbols {
		jobs <- symbol
	}
	close(jobs)
	wg.Wait()

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].Symbol < signals[j].Symbol
	})
	return signals, nil
}

func (e *StrategyExecutor) analyzeSymbol(ctx context.Context, symbol string, targetDate *time.Time) []models.OverreactSignal {
	history, err := e.store.GetPriceHistory(ctx, symbol, targetDate)
	if err != nil {
		e.logger.WithError(err).Errorf("Failed to load price history for %s", symbol)
		return nil
	}

	var signals []models.OverreactSignal
	for _, s := range e.strategies {
		e.logger.Debugf("Running strategy %s for %s", s.Name(), symbol)
		signal, err := s.Analyze(symbol, history, targetDate)
		if err != nil {
			e.logger.WithError(err).Errorf("Corrupt price history for %s, skip", symbol)
			continue
		}
		if signal == nil {
			continue
		}
		if err := e.store.SaveSignal(ctx, signal); err != nil {
			e.logger.WithError(err).Errorf("Failed to persist signal for %s", symbol)
		}
		e.cache.SetSignal(ctx, signal)
		signals = append(signals, *signal)
	}
	return signals
}
