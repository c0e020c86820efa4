package common

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ZeroAddress = common.Address{}

func GetERC20ABI() *abi.ABI {
	result, _ := abi.JSON(strings.NewReader(erc20abi))
	return &result
}

func HexToAddress(hex string) common.Address {
	return common.HexToAddress(hex)
}

func IsAddress(hex string) bool {
	return common.IsHexAddress(hex)
}

// NormalizeAddress returns the lower case 0x-prefixed form of hex, the
// form every persisted key uses.
func NormalizeAddress(hex string) string {
	return strings.ToLower(common.HexToAddress(hex).Hex())
}

func ShortAddress(hex string) string {
	addr := common.HexToAddress(hex).Hex()
	return addr[:6] + "..." + addr[len(addr)-4:]
}
