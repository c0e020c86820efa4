package strategy

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/vesting"
)

// Field name candidates for the schedule layouts seen in deployed vesting
// contracts. Names are compared lower case with underscores removed, the
// first candidate present wins.
var (
	beneficiaryFields = []string{"beneficiary", "holder", "recipient", "account", "user", "owner"}
	totalFields       = []string{"amounttotal", "totalamount", "total", "amount", "totalallocation", "allocation", "lockedamount"}
	releasedFields    = []string{"released", "releasedamount", "amountreleased", "claimed", "claimedamount", "withdrawn", "withdrawnamount"}
	startFields       = []string{"start", "starttime", "starttimestamp", "vestingstart", "startdate"}
	durationFields    = []string{"duration", "vestingduration", "durationseconds"}
	endFields         = []string{"end", "endtime", "endtimestamp", "vestingend", "enddate"}
	cliffFields       = []string{"cliff", "cliffduration", "cliffseconds", "cliffperiod"}
	cliffEndFields    = []string{"cliffend", "clifftime", "clifftimestamp", "cliffenddate"}
	releasableFields  = []string{"releasable", "releasableamount", "claimable", "claimableamount"}
	scheduleIDFields  = []string{"vestingscheduleid", "scheduleid", "vestingid", "id"}
	phaseFields       = []string{"phase", "label", "category", "name"}
)

// absoluteCliffThreshold separates cliff durations from cliff timestamps.
// No contract vests over 30 years, every post 2001 timestamp is larger.
const absoluteCliffThreshold = 1_000_000_000

var bigIntType = reflect.TypeOf(&big.Int{})

type fields map[string]interface{}

func normalizeFieldName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func (f fields) get(candidates []string) (interface{}, bool) {
	for _, c := range candidates {
		if v, found := f[c]; found {
			return v, true
		}
	}
	return nil, false
}

func (f fields) big(candidates []string) (*big.Int, bool) {
	v, found := f.get(candidates)
	if !found {
		return nil, false
	}
	return toBig(v)
}

func (f fields) uint(candidates []string) (uint64, bool) {
	v, found := f.get(candidates)
	if !found {
		return 0, false
	}
	return toUint64(v)
}

func (f fields) names() []string {
	result := make([]string, 0, len(f))
	for k := range f {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// decodeResult turns the outputs of a vesting accessor into raw entries.
// A single output may be one schedule struct or a list of them; several
// named outputs together form one schedule.
func decodeResult(beneficiary gethcommon.Address, res common.CallResult) ([]vesting.RawVestingEntry, error) {
	switch len(res.Values) {
	case 0:
		return []vesting.RawVestingEntry{}, nil
	case 1:
		return decodeValue(beneficiary, reflect.ValueOf(res.Values[0]))
	}
	f := fields{}
	for name, v := range res.Named() {
		f[normalizeFieldName(name)] = v
	}
	entry, ok, err := decodeFields(beneficiary, f)
	if err != nil || !ok {
		return []vesting.RawVestingEntry{}, err
	}
	return []vesting.RawVestingEntry{entry}, nil
}

func decodeValue(beneficiary gethcommon.Address, v reflect.Value) ([]vesting.RawVestingEntry, error) {
	for v.Kind() == reflect.Interface || (v.Kind() == reflect.Ptr && v.Type() != bigIntType) {
		if v.IsNil() {
			return []vesting.RawVestingEntry{}, nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil, fmt.Errorf("unexpected byte array where schedules were expected")
		}
		result := []vesting.RawVestingEntry{}
		for i := 0; i < v.Len(); i++ {
			entries, err := decodeValue(beneficiary, v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("schedule %d: %w", i, err)
			}
			result = append(result, entries...)
		}
		return result, nil
	case reflect.Struct:
		f := fields{}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			f[normalizeFieldName(t.Field(i).Name)] = v.Field(i).Interface()
		}
		entry, ok, err := decodeFields(beneficiary, f)
		if err != nil || !ok {
			return []vesting.RawVestingEntry{}, err
		}
		return []vesting.RawVestingEntry{entry}, nil
	default:
		return nil, fmt.Errorf("unexpected %s where schedules were expected", v.Type())
	}
}

// decodeFields reconciles one schedule layout. ok is false for empty slots,
// schedules with neither a total nor a released amount.
func decodeFields(beneficiary gethcommon.Address, f fields) (vesting.RawVestingEntry, bool, error) {
	total, found := f.big(totalFields)
	if !found {
		return vesting.RawVestingEntry{}, false, fmt.Errorf("no total amount among fields %v", f.names())
	}
	released, found := f.big(releasedFields)
	if !found {
		released = big.NewInt(0)
	}
	if total.Sign() == 0 && released.Sign() == 0 {
		return vesting.RawVestingEntry{}, false, nil
	}

	entry := vesting.RawVestingEntry{
		Beneficiary: strings.ToLower(beneficiary.Hex()),
		Total:       total,
		Released:    released,
	}
	if v, found := f.get(beneficiaryFields); found {
		if addr, ok := v.(gethcommon.Address); ok && addr != common.ZeroAddress {
			entry.Beneficiary = strings.ToLower(addr.Hex())
		}
	}
	entry.Start, _ = f.uint(startFields)
	if d, found := f.uint(durationFields); found {
		entry.Duration = d
	} else if end, found := f.uint(endFields); found && end > entry.Start {
		entry.Duration = end - entry.Start
	}
	if cliffEnd, found := f.uint(cliffEndFields); found && cliffEnd > entry.Start {
		entry.Cliff = cliffEnd - entry.Start
	} else if cliff, found := f.uint(cliffFields); found {
		if cliff >= absoluteCliffThreshold && cliff > entry.Start && entry.Start > 0 {
			cliff -= entry.Start
		}
		entry.Cliff = cliff
	}
	if r, found := f.big(releasableFields); found {
		entry.Releasable = r
	}
	if v, found := f.get(scheduleIDFields); found {
		entry.ScheduleID = formatID(v)
	}
	if v, found := f.get(phaseFields); found {
		if s, ok := v.(string); ok {
			entry.Phase = s
		}
	}
	return entry, true, nil
}

func toBig(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case uint:
		return new(big.Int).SetUint64(uint64(n)), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	case int:
		return big.NewInt(int64(n)), true
	}
	return nil, false
}

func toUint64(v interface{}) (uint64, bool) {
	b, ok := toBig(v)
	if !ok || b.Sign() < 0 {
		return 0, false
	}
	if !b.IsUint64() {
		return ^uint64(0), true
	}
	return b.Uint64(), true
}

func formatID(v interface{}) string {
	switch id := v.(type) {
	case [32]byte:
		return "0x" + hex.EncodeToString(id[:])
	case []byte:
		return "0x" + hex.EncodeToString(id)
	case string:
		return id
	}
	if b, ok := toBig(v); ok {
		return b.String()
	}
	return fmt.Sprintf("%v", v)
}
