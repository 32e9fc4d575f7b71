package strategies

import (
	"fmt"
	"sort"

	"backtestEngine/internal/ports"
)

// Constructor builds a strategy from its parameters.
type Constructor func(params Params, logger ports.Logger) (ports.Strategy, error)

var registry = map[string]Constructor{
	DipBuyName:         wrap(NewDipBuy),
	SMATrendName:       wrap(NewSMATrend),
	SignalFollowerName: wrap(NewRSIFollower),
	DailyTargetName:    wrap(NewDailyTarget),
}

// wrap keeps a failed constructor from leaking a typed nil through the interface.
func wrap[T ports.Strategy](ctor func(Params, ports.Logger) (T, error)) Constructor {
	return func(p Params, l ports.Logger) (ports.Strategy, error) {
		s, err := ctor(p, l)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// New creates the strategy registered under name.
func New(name string, params map[string]float64, logger ports.Logger) (ports.Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %v)", ports.ErrInvalidRequest, name, Names())
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	return ctor(Params(params), logger)
}

// Names lists the registered strategy names in order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
