// Package optim searches controller tunings by simulation.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/metrics"
	"github.com/san-kum/jointctl/internal/sim"
)

// Params maps a tunable name to the config field it sets.
var Params = map[string]func(*config.Config, float64){
	"q_position":          func(c *config.Config, v float64) { c.Tuning.QTolerances[0] = v },
	"q_velocity":          func(c *config.Config, v float64) { c.Tuning.QTolerances[1] = v },
	"r_voltage":           func(c *config.Config, v float64) { c.Tuning.RTolerance = v },
	"model_position":      func(c *config.Config, v float64) { c.Tuning.StateStdDevs[0] = v },
	"model_velocity":      func(c *config.Config, v float64) { c.Tuning.StateStdDevs[1] = v },
	"measurement_std_dev": func(c *config.Config, v float64) { c.Tuning.MeasurementStdDev = v },
}

func ParamNames() []string {
	names := make([]string, 0, len(Params))
	for name := range Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d params, %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("grid search: unknown param %q", name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %q", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search simulates base with every combination and returns the one with the
// lowest metricName. Combinations that fail to build are skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, fmt.Errorf("grid search: no combination produced a finite %s", metricName)
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		val, err := evaluate(ctx, base, current, metricName)
		if err != nil {
			return nil
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(ctx context.Context, base *config.Config, params map[string]float64, metricName string) (float64, error) {
	cfg := base.Clone()
	for name, v := range params {
		Params[name](cfg, v)
	}
	runner, err := sim.NewRunner(cfg, metrics.Standard(0.01))
	if err != nil {
		return 0, err
	}
	res, err := runner.Run(ctx, runner.Ticks())
	if err != nil {
		return 0, err
	}
	val, ok := res.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("unknown metric %q", metricName)
	}
	return val, nil
}
