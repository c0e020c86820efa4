// Package memory is an in-process store.DB. It backs tests and the
// "memory" database type, where the token and contract catalogue comes from
// a fixtures file.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/vesting"
)

type record struct {
	revision  string
	aggregate vesting.BeneficiaryAggregate
}

type abiKey struct {
	tokenID, address, network string
}

type Memory struct {
	vestingsMu sync.RWMutex
	vestings   map[store.Key]record
	writes     map[store.Key]int

	catalogueMu sync.RWMutex
	contracts   []vesting.VestingContract
	tokens      map[string]vesting.TokenContext

	abisMu sync.RWMutex
	abis   map[abiKey]vesting.ContractAbi

	// FailWrites, when set, is returned by every vesting write. Tests use
	// it to exercise persistence failures.
	FailWrites error
}

func New() *Memory {
	return &Memory{
		vestings:  map[store.Key]record{},
		writes:    map[store.Key]int{},
		contracts: []vesting.VestingContract{},
		tokens:    map[string]vesting.TokenContext{},
		abis:      map[abiKey]vesting.ContractAbi{},
	}
}

func copyAggregate(a vesting.BeneficiaryAggregate) vesting.BeneficiaryAggregate {
	result := a
	result.Schedules = make([]vesting.NormalizedSchedule, len(a.Schedules))
	copy(result.Schedules, a.Schedules)
	return result
}

func (m *Memory) Lookup(ctx context.Context, k store.Key) (vesting.BeneficiaryAggregate, error) {
	m.vestingsMu.RLock()
	defer m.vestingsMu.RUnlock()
	r, found := m.vestings[k.Normalized()]
	if !found {
		return vesting.BeneficiaryAggregate{}, store.ErrNotFound
	}
	return copyAggregate(r.aggregate), nil
}

func (m *Memory) ReplaceAll(ctx context.Context, k store.Key, agg vesting.BeneficiaryAggregate) error {
	if !k.Valid() {
		return store.ErrInvalidRecord
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	k = k.Normalized()
	agg = copyAggregate(agg)
	agg.Beneficiary = k.Beneficiary
	if agg.UpdatedAt.IsZero() {
		agg.UpdatedAt = time.Now().UTC()
	}

	m.vestingsMu.Lock()
	defer m.vestingsMu.Unlock()
	m.vestings[k] = record{revision: uuid.NewString(), aggregate: agg}
	m.writes[k]++
	return nil
}

func (m *Memory) RefreshOne(ctx context.Context, k store.Key, agg vesting.BeneficiaryAggregate) error {
	return m.ReplaceAll(ctx, k, agg)
}

// Writes returns how many times the aggregate under k was written.
func (m *Memory) Writes(k store.Key) int {
	m.vestingsMu.RLock()
	defer m.vestingsMu.RUnlock()
	return m.writes[k.Normalized()]
}

// Revision identifies the last write under k. Every write gets a new one.
func (m *Memory) Revision(k store.Key) string {
	m.vestingsMu.RLock()
	defer m.vestingsMu.RUnlock()
	return m.vestings[k.Normalized()].revision
}

func (m *Memory) SaveVestingContract(c vesting.VestingContract) {
	c.Address = strings.ToLower(c.Address)
	c.Network = strings.ToLower(c.Network)
	if c.Category == "" {
		c.Category = vesting.CategoryVesting
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	m.catalogueMu.Lock()
	defer m.catalogueMu.Unlock()
	for i, existing := range m.contracts {
		if existing.TokenID == c.TokenID && existing.Address == c.Address && existing.Network == c.Network {
			m.contracts[i] = c
			return
		}
	}
	m.contracts = append(m.contracts, c)
}

func (m *Memory) ListActiveVestingContracts(ctx context.Context, tokenID, network string) ([]vesting.VestingContract, error) {
	network = strings.ToLower(network)
	m.catalogueMu.RLock()
	defer m.catalogueMu.RUnlock()
	result := []vesting.VestingContract{}
	for _, c := range m.contracts {
		if c.TokenID == tokenID && c.Network == network && c.Active && c.Category == vesting.CategoryVesting {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) GetVestingContract(ctx context.Context, tokenID, address, network string) (vesting.VestingContract, error) {
	address = strings.ToLower(address)
	network = strings.ToLower(network)
	m.catalogueMu.RLock()
	defer m.catalogueMu.RUnlock()
	for _, c := range m.contracts {
		if c.TokenID == tokenID && c.Address == address && c.Network == network {
			return c, nil
		}
	}
	return vesting.VestingContract{}, store.ErrNotFound
}

func (m *Memory) SaveToken(t vesting.TokenContext) {
	t.Address = strings.ToLower(t.Address)
	t.Network = strings.ToLower(t.Network)
	m.catalogueMu.Lock()
	defer m.catalogueMu.Unlock()
	m.tokens[t.TokenID] = t
}

func (m *Memory) GetToken(ctx context.Context, tokenID string) (vesting.TokenContext, error) {
	m.catalogueMu.RLock()
	defer m.catalogueMu.RUnlock()
	t, found := m.tokens[tokenID]
	if !found {
		return vesting.TokenContext{}, store.ErrNotFound
	}
	return t, nil
}

func (m *Memory) GetContractAbi(ctx context.Context, tokenID, address, network string) (vesting.ContractAbi, error) {
	m.abisMu.RLock()
	defer m.abisMu.RUnlock()
	a, found := m.abis[abiKey{tokenID, strings.ToLower(address), strings.ToLower(network)}]
	if !found {
		return vesting.ContractAbi{}, store.ErrNotFound
	}
	return a, nil
}

func (m *Memory) SaveContractAbi(ctx context.Context, a vesting.ContractAbi) error {
	if a.TokenID == "" || a.ContractAddress == "" || a.Network == "" {
		return store.ErrInvalidRecord
	}
	a.ContractAddress = strings.ToLower(a.ContractAddress)
	a.Network = strings.ToLower(a.Network)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.abisMu.Lock()
	defer m.abisMu.Unlock()
	m.abis[abiKey{a.TokenID, a.ContractAddress, a.Network}] = a
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Fixtures is the catalogue a memory store starts with.
//
//	tokens:
//	  - id: acme
//	    address: "0x..."
//	    network: base
//	    symbol: ACME
//	    decimals: 18
//	contracts:
//	  - token_id: acme
//	    address: "0x..."
//	    network: base
//	    name: Team vesting
type Fixtures struct {
	Tokens []struct {
		ID              string `yaml:"id"`
		Address         string `yaml:"address"`
		Network         string `yaml:"network"`
		Symbol          string `yaml:"symbol"`
		Decimals        uint8  `yaml:"decimals"`
		PrimaryAPIKey   string `yaml:"primary_api_key"`
		SecondaryAPIKey string `yaml:"secondary_api_key"`
	} `yaml:"tokens"`
	Contracts []struct {
		TokenID   string    `yaml:"token_id"`
		Address   string    `yaml:"address"`
		Network   string    `yaml:"network"`
		Name      string    `yaml:"name"`
		Inactive  bool      `yaml:"inactive"`
		CreatedAt time.Time `yaml:"created_at"`
	} `yaml:"contracts"`
}

// Load applies fixtures to m. Contracts without a creation time keep the
// order they are listed in.
func (m *Memory) Load(f Fixtures) {
	for _, t := range f.Tokens {
		m.SaveToken(vesting.TokenContext{
			TokenID:  t.ID,
			Address:  t.Address,
			Network:  t.Network,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Keys: vesting.ExplorerKeys{
				Primary:   t.PrimaryAPIKey,
				Secondary: t.SecondaryAPIKey,
			},
		})
	}
	base := time.Unix(0, 0).UTC()
	for i, c := range f.Contracts {
		created := c.CreatedAt
		if created.IsZero() {
			created = base.Add(time.Duration(i) * time.Second)
		}
		m.SaveVestingContract(vesting.VestingContract{
			TokenID:   c.TokenID,
			Address:   c.Address,
			Network:   c.Network,
			Name:      c.Name,
			Category:  vesting.CategoryVesting,
			Active:    !c.Inactive,
			CreatedAt: created,
		})
	}
}

// NewFromFile returns a memory store loaded with the fixtures at path. An
// empty path returns an empty store.
func NewFromFile(path string) (*Memory, error) {
	m := New()
	if path == "" {
		return m, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	f := Fixtures{}
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	m.Load(f)
	return m, nil
}
