package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/strategy/backtesting"
	"backtestEngine/internal/strategy/strategies"
)

// DefaultWorkers bounds concurrent runs when OptimizerConfig.Workers is unset.
const DefaultWorkers = 4

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// Values expands the range into its grid points, Max included.
func (r ParameterRange) Values() []float64 {
	if r.Step <= 0 {
		return []float64{r.Min}
	}
	var out []float64
	for value := r.Min; value <= r.Max+r.Step/2; value += r.Step { // Half a step of slack for float drift
		v := value
		if r.IsInt {
			v = math.Round(v)
		}
		out = append(out, v)
	}
	return out
}

// OptimizationResult holds the outcome of one parameter combination.
type OptimizationResult struct {
	Parameters map[string]float64
	RunID      string
	Metrics    domain.Metrics
	Score      float64
	Result     *domain.BacktestResult `json:"-"`
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	Strategy   string
	BaseParams map[string]float64   // applied to every combination, overridden by the grid
	Grid       map[string][]float64 // explicit values per parameter
	Ranges     []ParameterRange     // merged into Grid
	Symbols    []string
	Start      time.Time
	End        time.Time
	Timeframe  domain.Timeframe
	Workers    int

	ScoreFunction func(domain.Metrics) float64
}

// Optimizer runs one backtest per parameter combination.
type Optimizer struct {
	config OptimizerConfig
	engine *backtesting.Engine
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance. Bars are loaded from provider
// once per symbol and shared by every combination.
func NewOptimizer(config OptimizerConfig, engineCfg backtesting.Config, provider ports.MarketDataProvider, logger ports.Logger) (*Optimizer, error) {
	if provider == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Optimizer", ports.ErrConfigurationError)
	}
	if config.Strategy == "" {
		return nil, fmt.Errorf("%w: strategy name is required", ports.ErrInvalidRequest)
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Timeframe == "" {
		config.Timeframe = domain.TimeframeDaily
	}
	engine, err := backtesting.NewEngine(engineCfg, newCachingProvider(provider), logger)
	if err != nil {
		return nil, err
	}
	return &Optimizer{config: config, engine: engine, logger: logger}, nil
}

// Optimize runs every combination and returns the results sorted by score,
// best first. A combination whose strategy cannot be built fails the sweep;
// a combination whose run fails on data is logged and left out.
func (o *Optimizer) Optimize(ctx context.Context) ([]OptimizationResult, error) {
	combinations, err := o.Combinations()
	if err != nil {
		return nil, err
	}
	o.logger.Info(ctx, "Starting parameter sweep", map[string]interface{}{
		"strategy": o.config.Strategy, "combinations": len(combinations), "workers": o.config.Workers,
	})

	var mu sync.Mutex
	results := make([]OptimizationResult, 0, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)
	for _, params := range combinations {
		g.Go(func() error {
			strat, err := strategies.New(o.config.Strategy, params, o.logger)
			if err != nil {
				return fmt.Errorf("building %s with %v: %w", o.config.Strategy, params, err)
			}
			res, err := o.engine.Run(gctx, strat, o.config.Symbols, o.config.Start, o.config.End, o.config.Timeframe)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ports.ErrInvariant) {
					return err
				}
				o.logger.Warn(gctx, "Sweep combination failed", map[string]interface{}{"params": formatParams(params), "error": err.Error()})
				return nil
			}
			mu.Lock()
			results = append(results, OptimizationResult{
				Parameters: params,
				RunID:      res.RunID,
				Metrics:    res.Metrics,
				Score:      o.config.ScoreFunction(res.Metrics),
				Result:     res,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no combination of %s produced a result", ports.ErrNoData, o.config.Strategy)
	}

	sortResultsByScore(results)
	o.logger.Info(ctx, "Parameter sweep finished", map[string]interface{}{
		"results": len(results), "bestScore": results[0].Score, "bestParams": formatParams(results[0].Parameters),
	})
	return results, nil
}

// Combinations returns the cartesian product of the grid, each merged over
// BaseParams. The order is deterministic.
func (o *Optimizer) Combinations() ([]map[string]float64, error) {
	grid := make(map[string][]float64, len(o.config.Grid)+len(o.config.Ranges))
	for name, values := range o.config.Grid {
		grid[name] = append([]float64(nil), values...)
	}
	for _, r := range o.config.Ranges {
		grid[r.Name] = append(grid[r.Name], r.Values()...)
	}

	names := make([]string, 0, len(grid))
	for name, values := range grid {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: parameter %q has no values", ports.ErrInvalidRequest, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var combinations []map[string]float64
	current := make(map[string]float64, len(names))

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(names) {
			combination := make(map[string]float64, len(o.config.BaseParams)+len(current))
			for k, v := range o.config.BaseParams {
				combination[k] = v
			}
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}
		name := names[paramIndex]
		for _, v := range grid[name] {
			current[name] = v
			generate(paramIndex + 1)
		}
	}
	generate(0)
	return combinations, nil
}

// sortResultsByScore sorts optimization results by score in descending order.
// Ties keep the order of RunID so output is stable.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RunID < results[j].RunID
	})
}

// DefaultScoreFunction rewards return and risk-adjusted return and penalizes drawdown.
func DefaultScoreFunction(metrics domain.Metrics) float64 {
	score := 0.0
	score += metrics.TotalReturnPct * 0.5
	score += metrics.SharpeRatio * 0.3
	score -= metrics.MaxDrawdownPct * 0.2
	return score
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, params[k]))
	}
	return strings.Join(parts, ",")
}
