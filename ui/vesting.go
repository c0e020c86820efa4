package ui

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/resolver"
	"github.com/tranvictor/vestingscope/vesting"
)

// AmountPlaces is the number of decimals shown for token amounts.
const AmountPlaces = 4

var printer = message.NewPrinter(language.English)

// FormatAmount renders d with thousands separators, rounded to places and
// without trailing zeros.
func FormatAmount(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)
	intPart, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign = "-"
		intPart = intPart[1:]
	}
	if n, ok := new(big.Int).SetString(intPart, 10); ok && n.IsInt64() {
		intPart = printer.Sprintf("%d", n.Int64())
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return sign + intPart
	}
	return sign + intPart + "." + frac
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func contractLabel(c vesting.VestingContract) string {
	if c.Name != "" {
		return c.Name
	}
	return common.ShortAddress(c.Address)
}

func source(fromCache bool) string {
	if fromCache {
		return "cache"
	}
	return "chain"
}

var vestingHeaders = []string{"Contract", "Total", "Vested", "Claimable", "Released", "Remaining", "Start", "End", "Source"}

// PrintWalletSummary prints the vesting of one wallet, one table row per
// contract and a row per schedule when a contract holds more than one.
func PrintWalletSummary(u UI, s vesting.WalletVestingSummary) {
	u.Section("Vesting of " + s.Wallet + " on " + s.Network)

	groups := [][][]string{}
	failed := []vesting.ContractVesting{}
	for _, cv := range s.Contracts {
		agg := cv.Aggregate
		if agg.Failed() {
			failed = append(failed, cv)
			continue
		}
		symbol := cv.Token.Symbol
		if agg.NoVestings {
			groups = append(groups, [][]string{{
				contractLabel(cv.Contract),
				u.Style(StyledText{Text: "no vestings", Severity: SeverityWarn}),
				"", "", "", "", "", "",
				source(cv.FromCache),
			}})
			continue
		}
		group := [][]string{{
			contractLabel(cv.Contract),
			FormatAmount(agg.Total, AmountPlaces) + " " + symbol,
			FormatAmount(agg.Vested(), AmountPlaces),
			u.Style(StyledText{Text: FormatAmount(agg.Releasable, AmountPlaces), Severity: SeveritySuccess}),
			FormatAmount(agg.Released, AmountPlaces),
			FormatAmount(agg.Remaining, AmountPlaces),
			formatDate(agg.Start()),
			formatDate(agg.End()),
			source(cv.FromCache),
		}}
		if len(agg.Schedules) > 1 {
			for i, sch := range agg.Schedules {
				label := sch.ScheduleID
				if sch.Phase != "" {
					label = sch.Phase
				}
				if label == "" {
					label = printer.Sprintf("#%d", i+1)
				}
				group = append(group, []string{
					"  " + label,
					FormatAmount(sch.Total, AmountPlaces),
					FormatAmount(sch.Vested(), AmountPlaces),
					FormatAmount(sch.Releasable, AmountPlaces),
					FormatAmount(sch.Released, AmountPlaces),
					FormatAmount(sch.Remaining, AmountPlaces),
					formatDate(sch.Start),
					formatDate(sch.End),
					"",
				})
			}
		}
		groups = append(groups, group)
	}

	if len(groups) > 0 {
		u.AlignRight(1, 2, 3, 4, 5).TableWithGroups(vestingHeaders, groups)
	} else {
		u.Warn("No vesting contracts hold schedules for this wallet.")
	}

	u.KeyValue([][2]string{
		{"Total", FormatAmount(s.Total, AmountPlaces)},
		{"Vested", FormatAmount(s.Released.Add(s.Releasable), AmountPlaces)},
		{"Claimable", u.Style(StyledText{Text: FormatAmount(s.Releasable, AmountPlaces), Severity: SeveritySuccess})},
		{"Released", FormatAmount(s.Released, AmountPlaces)},
		{"Remaining", FormatAmount(s.Remaining, AmountPlaces)},
	})

	for _, cv := range failed {
		u.Error("%s: %s", contractLabel(cv.Contract), cv.Aggregate.Error)
	}
}

// PrintDebugLog prints the per contract outcome lines of a wallet summary.
func PrintDebugLog(u UI, s vesting.WalletVestingSummary) {
	if len(s.DebugLog) == 0 {
		return
	}
	u.Section("Resolution log")
	child := u.Indent()
	for _, line := range s.DebugLog {
		child.Info("%s", line)
	}
}

// PrintContractSummary prints many beneficiaries of one contract.
func PrintContractSummary(u UI, s resolver.ContractSummary) {
	u.Section(contractLabel(s.Contract) + " (" + s.Contract.Address + ")")
	rows := make([][]string, 0, len(s.Beneficiaries))
	for _, b := range s.Beneficiaries {
		agg := b.Aggregate
		switch {
		case agg.Failed():
			rows = append(rows, []string{
				agg.Beneficiary,
				u.Style(StyledText{Text: "error", Severity: SeverityError}),
				"", "", "", source(b.FromCache),
			})
		case agg.NoVestings:
			rows = append(rows, []string{
				agg.Beneficiary,
				u.Style(StyledText{Text: "no vestings", Severity: SeverityWarn}),
				"", "", "", source(b.FromCache),
			})
		default:
			rows = append(rows, []string{
				agg.Beneficiary,
				FormatAmount(agg.Total, AmountPlaces),
				FormatAmount(agg.Releasable, AmountPlaces),
				FormatAmount(agg.Released, AmountPlaces),
				FormatAmount(agg.Remaining, AmountPlaces),
				source(b.FromCache),
			})
		}
	}
	u.AlignRight(1, 2, 3, 4).Table([]string{"Beneficiary", "Total", "Claimable", "Released", "Remaining", "Source"}, rows)
	u.KeyValue([][2]string{
		{"Beneficiaries", printer.Sprintf("%d", len(s.Beneficiaries))},
		{"Failed", printer.Sprintf("%d", s.Failed)},
		{"No vestings", printer.Sprintf("%d", s.NoVestings)},
		{"Total", FormatAmount(s.Total, AmountPlaces) + " " + s.Token.Symbol},
		{"Claimable", FormatAmount(s.Releasable, AmountPlaces)},
		{"Released", FormatAmount(s.Released, AmountPlaces)},
		{"Remaining", FormatAmount(s.Remaining, AmountPlaces)},
	})
	for _, b := range s.Beneficiaries {
		if b.Aggregate.Failed() {
			u.Error("%s: %s", b.Aggregate.Beneficiary, b.Aggregate.Error)
		}
	}
}
