package strategy

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/vesting"
)

// maxEnumeratedSchedules bounds index enumeration against contracts that
// report absurd counts.
const maxEnumeratedSchedules = 256

// DirectMethod calls Method(beneficiary) through the contract ABI and
// decodes whatever schedule layout it returns.
type DirectMethod struct {
	Method string
}

func (a DirectMethod) Name() string   { return "direct:" + a.Method }
func (a DirectMethod) Kind() string   { return "direct" }
func (a DirectMethod) NeedsABI() bool { return true }

func (a DirectMethod) Fetch(ctx context.Context, h ContractHandle, beneficiary gethcommon.Address) ([]vesting.RawVestingEntry, error) {
	if _, found := h.Method(a.Method); !found {
		return nil, fmt.Errorf("%s: %w", a.Method, common.ErrMethodNotInABI)
	}
	res, err := h.Call(ctx, a.Method, beneficiary)
	if err != nil {
		return nil, err
	}
	return decodeResult(beneficiary, res)
}

// RawSelector performs a low level call of a known function signature
// without needing the contract ABI.
type RawSelector struct {
	Call *common.RawCall
}

func (a RawSelector) Name() string   { return "raw:" + a.Call.Signature() }
func (a RawSelector) Kind() string   { return "raw" }
func (a RawSelector) NeedsABI() bool { return false }

func (a RawSelector) Fetch(ctx context.Context, h ContractHandle, beneficiary gethcommon.Address) ([]vesting.RawVestingEntry, error) {
	data, err := a.Call.Encode(beneficiary)
	if err != nil {
		return nil, err
	}
	out, err := h.CallRaw(ctx, data)
	if err != nil {
		return nil, err
	}
	res, err := a.Call.Decode(out)
	if err != nil {
		return nil, err
	}
	return decodeResult(beneficiary, res)
}

// IndexEnumeration reads a schedule count then fetches each schedule by
// index. When IDMethod is set the index is first turned into a schedule id
// and ByIndexMethod is called with that id. A count method without inputs
// enumerates every schedule of the contract, which are then filtered by
// beneficiary.
type IndexEnumeration struct {
	CountMethod   string
	IDMethod      string
	ByIndexMethod string
}

func (a IndexEnumeration) Name() string {
	if a.IDMethod != "" {
		return fmt.Sprintf("index:%s/%s/%s", a.CountMethod, a.IDMethod, a.ByIndexMethod)
	}
	return fmt.Sprintf("index:%s/%s", a.CountMethod, a.ByIndexMethod)
}

func (a IndexEnumeration) Kind() string   { return "index" }
func (a IndexEnumeration) NeedsABI() bool { return true }

func (a IndexEnumeration) Fetch(ctx context.Context, h ContractHandle, beneficiary gethcommon.Address) ([]vesting.RawVestingEntry, error) {
	countMethod, found := h.Method(a.CountMethod)
	if !found {
		return nil, fmt.Errorf("%s: %w", a.CountMethod, common.ErrMethodNotInABI)
	}
	byIndex, found := h.Method(a.ByIndexMethod)
	if !found {
		return nil, fmt.Errorf("%s: %w", a.ByIndexMethod, common.ErrMethodNotInABI)
	}
	var idMethod abi.Method
	if a.IDMethod != "" {
		if idMethod, found = h.Method(a.IDMethod); !found {
			return nil, fmt.Errorf("%s: %w", a.IDMethod, common.ErrMethodNotInABI)
		}
	}

	perHolder := len(countMethod.Inputs) > 0
	countArgs := []interface{}{}
	if perHolder {
		countArgs = append(countArgs, beneficiary)
	}
	res, err := h.Call(ctx, a.CountMethod, countArgs...)
	if err != nil {
		return nil, err
	}
	if len(res.Values) == 0 {
		return nil, fmt.Errorf("%s: %w", a.CountMethod, common.ErrEmptyReturnData)
	}
	count, ok := toUint64(res.Values[0])
	if !ok {
		return nil, fmt.Errorf("%s returned %T, not a count", a.CountMethod, res.Values[0])
	}
	if count > maxEnumeratedSchedules {
		return nil, fmt.Errorf("%s returned %d schedules, more than %d", a.CountMethod, count, maxEnumeratedSchedules)
	}

	result := []vesting.RawVestingEntry{}
	for i := uint64(0); i < count; i++ {
		scheduleID := fmt.Sprintf("%d", i)
		var args []interface{}
		if a.IDMethod != "" {
			idArgs, err := indexArgs(idMethod, beneficiary, i)
			if err != nil {
				return nil, err
			}
			idRes, err := h.Call(ctx, a.IDMethod, idArgs...)
			if err != nil {
				return nil, err
			}
			if len(idRes.Values) == 0 {
				return nil, fmt.Errorf("%s: %w", a.IDMethod, common.ErrEmptyReturnData)
			}
			scheduleID = formatID(idRes.Values[0])
			args = []interface{}{idRes.Values[0]}
		} else {
			if args, err = indexArgs(byIndex, beneficiary, i); err != nil {
				return nil, err
			}
		}
		schedRes, err := h.Call(ctx, a.ByIndexMethod, args...)
		if err != nil {
			return nil, err
		}
		entries, err := decodeResult(beneficiary, schedRes)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !perHolder && !strings.EqualFold(e.Beneficiary, beneficiary.Hex()) {
				continue
			}
			if e.ScheduleID == "" {
				e.ScheduleID = scheduleID
			}
			result = append(result, e)
		}
	}
	return result, nil
}

// indexArgs builds the arguments of a by index accessor: the beneficiary
// when the method takes an address, and the index typed as the method
// declares it.
func indexArgs(m abi.Method, beneficiary gethcommon.Address, index uint64) ([]interface{}, error) {
	args := []interface{}{}
	for _, in := range m.Inputs {
		switch in.Type.T {
		case abi.AddressTy:
			args = append(args, beneficiary)
		case abi.UintTy:
			args = append(args, uintArg(in.Type, index))
		default:
			return nil, fmt.Errorf("%s: unsupported index input type %s", m.Name, in.Type.String())
		}
	}
	return args, nil
}

func uintArg(t abi.Type, v uint64) interface{} {
	switch t.Size {
	case 8:
		return uint8(v)
	case 16:
		return uint16(v)
	case 32:
		return uint32(v)
	case 64:
		return v
	default:
		return new(big.Int).SetUint64(v)
	}
}
