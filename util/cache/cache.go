// Package cache keeps parsed contract ABIs in memory. ABI JSON is parsed
// once per distinct document no matter how many contracts share it.
package cache

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 256

type ABICache struct {
	parsed *lru.Cache[[32]byte, *abi.ABI]
}

func NewABICache(size int) (*ABICache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[[32]byte, *abi.ABI](size)
	if err != nil {
		return nil, fmt.Errorf("creating abi cache: %w", err)
	}
	return &ABICache{parsed: c}, nil
}

// Parse returns the parsed form of abiJSON, parsing it only on a miss.
func (c *ABICache) Parse(abiJSON string) (*abi.ABI, error) {
	key := crypto.Keccak256Hash([]byte(abiJSON))
	if result, found := c.parsed.Get(key); found {
		return result, nil
	}
	result, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	c.parsed.Add(key, &result)
	return &result, nil
}

func (c *ABICache) Len() int {
	return c.parsed.Len()
}
