package abiresolver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed seeds.json
var embeddedSeeds []byte

// Seeds are ABIs of well known contracts keyed by lower case address. They
// apply on every network and never change after startup. A seeded ABI is
// served with source CACHE_LEGACY, after the persisted ABI and before any
// explorer.
//
// The set compiled into the binary is empty: seeds.json only exists so a
// build can ship addresses without code changes. Deployments supply their
// seeds through the abi_seeds config file, see LoadSeeds.
type Seeds struct {
	abis map[string]string
}

// ParseSeeds reads a JSON object mapping contract addresses to ABI arrays.
// Every ABI must parse.
func ParseSeeds(content []byte) (Seeds, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return Seeds{}, fmt.Errorf("parsing abi seeds: %w", err)
	}
	result := Seeds{abis: map[string]string{}}
	for address, a := range raw {
		if _, err := abi.JSON(strings.NewReader(string(a))); err != nil {
			return Seeds{}, fmt.Errorf("abi seed of %s: %w", address, err)
		}
		result.abis[strings.ToLower(address)] = string(a)
	}
	return result, nil
}

// DefaultSeeds returns the seeds compiled into the binary. It is empty
// unless seeds.json is populated at build time.
func DefaultSeeds() Seeds {
	result, err := ParseSeeds(embeddedSeeds)
	if err != nil {
		panic(err)
	}
	return result
}

// LoadSeeds returns the compiled in seeds merged with the ones in path.
// Seeds from path win.
func LoadSeeds(path string) (Seeds, error) {
	result := DefaultSeeds()
	if path == "" {
		return result, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Seeds{}, fmt.Errorf("reading abi seeds: %w", err)
	}
	extra, err := ParseSeeds(content)
	if err != nil {
		return Seeds{}, err
	}
	for address, a := range extra.abis {
		result.abis[address] = a
	}
	return result, nil
}

func (s Seeds) Get(address string) (string, bool) {
	a, found := s.abis[strings.ToLower(address)]
	return a, found
}

func (s Seeds) Len() int {
	return len(s.abis)
}
