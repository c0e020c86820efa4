package strategy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tranvictor/vestingscope/common"
)

// Registry maps contract addresses to their strategy. Unknown addresses get
// the generic fallback.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	generic    Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: map[string]Strategy{},
		generic:    Generic(),
	}
}

func (r *Registry) Register(address string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(address)] = s
}

func (r *Registry) Lookup(address string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, found := r.strategies[strings.ToLower(address)]
	return s, found
}

// StrategyFor returns the registered strategy of address, or the generic
// fallback.
func (r *Registry) StrategyFor(address string) Strategy {
	if s, found := r.Lookup(address); found {
		return s
	}
	return r.generic
}

// Spec is the configuration form of a strategy registration.
//
//	strategies:
//	  - address: "0x..."
//	    kind: direct
//	    method: getVestingListByHolder
//	  - address: "0x..."
//	    kind: custom
//	    attempts:
//	      - type: raw
//	        signature: getVestingSchedules(address)
//	        outputs: [...]
//	      - type: index
//	        count_method: getVestingSchedulesCountByBeneficiary
//	        by_index_method: getVestingScheduleByAddressAndIndex
type Spec struct {
	Address  string        `yaml:"address" json:"address"`
	Kind     string        `yaml:"kind" json:"kind"`
	Method   string        `yaml:"method" json:"method"`
	Attempts []AttemptSpec `yaml:"attempts" json:"attempts"`
	OnEmpty  []AttemptSpec `yaml:"on_empty" json:"on_empty"`
}

type AttemptSpec struct {
	Type          string                   `yaml:"type" json:"type"`
	Method        string                   `yaml:"method" json:"method"`
	Signature     string                   `yaml:"signature" json:"signature"`
	Outputs       []abi.ArgumentMarshaling `yaml:"outputs" json:"outputs"`
	CountMethod   string                   `yaml:"count_method" json:"count_method"`
	IDMethod      string                   `yaml:"id_method" json:"id_method"`
	ByIndexMethod string                   `yaml:"by_index_method" json:"by_index_method"`
}

func (as AttemptSpec) Build() (Attempt, error) {
	switch strings.ToLower(as.Type) {
	case "direct", "":
		if as.Method == "" {
			return nil, fmt.Errorf("direct attempt needs a method")
		}
		return DirectMethod{Method: as.Method}, nil
	case "raw":
		outputs, err := common.ParseArguments(as.Outputs)
		if err != nil {
			return nil, err
		}
		call, err := common.NewRawCall(as.Signature, outputs)
		if err != nil {
			return nil, err
		}
		return RawSelector{Call: call}, nil
	case "index":
		if as.CountMethod == "" || as.ByIndexMethod == "" {
			return nil, fmt.Errorf("index attempt needs count_method and by_index_method")
		}
		return IndexEnumeration{
			CountMethod:   as.CountMethod,
			IDMethod:      as.IDMethod,
			ByIndexMethod: as.ByIndexMethod,
		}, nil
	}
	return nil, fmt.Errorf("unknown attempt type %q", as.Type)
}

func buildAttempts(specs []AttemptSpec) ([]Attempt, error) {
	result := []Attempt{}
	for i, as := range specs {
		a, err := as.Build()
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", i, err)
		}
		result = append(result, a)
	}
	return result, nil
}

func (s Spec) Build() (Strategy, error) {
	switch strings.ToLower(s.Kind) {
	case "direct":
		if s.Method == "" {
			return Strategy{}, fmt.Errorf("direct strategy needs a method")
		}
		result := Direct(s.Method)
		if len(s.OnEmpty) > 0 {
			onEmpty, err := buildAttempts(s.OnEmpty)
			if err != nil {
				return Strategy{}, err
			}
			result.OnEmpty = onEmpty
		}
		return result, nil
	case "custom":
		attempts, err := buildAttempts(s.Attempts)
		if err != nil {
			return Strategy{}, err
		}
		if len(attempts) == 0 {
			return Strategy{}, fmt.Errorf("custom strategy needs attempts")
		}
		return Custom(attempts...), nil
	case "generic", "":
		return Generic(), nil
	}
	return Strategy{}, fmt.Errorf("unknown strategy kind %q", s.Kind)
}

// RegisterSpecs builds and registers every spec, stopping at the first
// invalid one.
func (r *Registry) RegisterSpecs(specs []Spec) error {
	for _, spec := range specs {
		if !common.IsAddress(spec.Address) {
			return fmt.Errorf("strategy for %q: invalid contract address", spec.Address)
		}
		s, err := spec.Build()
		if err != nil {
			return fmt.Errorf("strategy for %s: %w", spec.Address, err)
		}
		r.Register(spec.Address, s)
	}
	return nil
}
