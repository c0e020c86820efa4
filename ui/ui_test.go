package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tranvictor/vestingscope/resolver"
	"github.com/tranvictor/vestingscope/vesting"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   string
	}{
		{"1234567.5", 4, "1,234,567.5"},
		{"0", 4, "0"},
		{"10", 4, "10"},
		{"-1500.25", 4, "-1,500.25"},
		{"0.00004", 4, "0"},
		{"999.99999", 4, "1,000"},
		{"12.3456789", 2, "12.35"},
	}
	for _, c := range cases {
		got := FormatAmount(decimal.RequireFromString(c.in), c.places)
		if got != c.want {
			t.Fatalf("FormatAmount(%s, %d): expected %s, got %s", c.in, c.places, c.want, got)
		}
	}
}

func TestStyledTextMarshalsAsPlainText(t *testing.T) {
	b, err := json.Marshal(StyledText{Text: "claimable", Severity: SeveritySuccess})
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	if string(b) != `"claimable"` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestTerminalTable(t *testing.T) {
	var buf bytes.Buffer
	u := NewWriterUI(&buf)
	u.AlignRight(1).Table([]string{"A", "Amount"}, [][]string{{"x", "1"}, {"yy", "100"}})

	want := strings.Join([]string{
		"┌────┬────────┐",
		"│ A  │ Amount │",
		"├────┼────────┤",
		"│ x  │      1 │",
		"│ yy │    100 │",
		"└────┴────────┘",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected table:\n%s\nexpected:\n%s", buf.String(), want)
	}
}

func TestTerminalIndentAndSection(t *testing.T) {
	var buf bytes.Buffer
	u := NewWriterUI(&buf)
	child := u.Indent()
	child.Info("hello %d", 1)
	_, _ = child.Writer().Write([]byte("a\nb\n"))
	u.Section("Report")

	out := buf.String()
	if !strings.HasPrefix(out, "  hello 1\n") {
		t.Fatalf("expected indented info line, got %q", out)
	}
	if !strings.Contains(out, "  a\n  b") {
		t.Fatalf("expected indented writer output, got %q", out)
	}
	if !strings.Contains(out, "= Report =") {
		t.Fatalf("expected section title, got %q", out)
	}
}

func TestRecordingUISpinnerIsNoop(t *testing.T) {
	r := NewRecordingUI()
	stop := r.Spinner("fetching")
	stop()
	r.Indent().Warn("careful %s", "now")
	if len(r.Entries()) != 2 || r.WarnMessages()[0] != "careful now" {
		t.Fatalf("unexpected entries %+v", r.Entries())
	}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestPrintWalletSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := vesting.TokenContext{Symbol: "TKN"}
	two := vesting.BeneficiaryAggregate{
		Schedules: []vesting.NormalizedSchedule{
			{Phase: "seed", Total: d(60), Released: d(10), Remaining: d(50), Releasable: d(20), Start: start, End: start.AddDate(1, 0, 0)},
			{Total: d(40), Released: d(0), Remaining: d(40), Releasable: d(5), Start: start.AddDate(0, 6, 0), End: start.AddDate(2, 0, 0)},
		},
		Total: d(100), Released: d(10), Remaining: d(90), Releasable: d(25),
	}
	s := vesting.WalletVestingSummary{
		Wallet:  "0xabc",
		Network: "base",
		Contracts: []vesting.ContractVesting{
			{Contract: vesting.VestingContract{Name: "Team"}, Token: token, Aggregate: two, FromCache: true},
			{Contract: vesting.VestingContract{Name: "Advisors"}, Token: token, Aggregate: vesting.BeneficiaryAggregate{NoVestings: true}},
			{Contract: vesting.VestingContract{Address: "0x1234567890123456789012345678901234567890"}, Token: token, Aggregate: vesting.Failed("0xabc", errors.New("execution reverted"))},
		},
		Total: d(100), Released: d(10), Remaining: d(90), Releasable: d(25),
		DebugLog: []string{"Team: served from cache"},
	}
	r := NewRecordingUI()
	PrintWalletSummary(r, s)
	PrintDebugLog(r, s)

	tables := r.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected one table, got %d", len(tables))
	}
	rows := tables[0].Rows
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Team" || rows[0][1] != "100 TKN" || rows[0][2] != "35" || rows[0][3] != "25" || rows[0][6] != "2024-01-01" || rows[0][7] != "2026-01-01" || rows[0][8] != "cache" {
		t.Fatalf("unexpected contract row %v", rows[0])
	}
	if rows[1][0] != "  seed" || rows[2][0] != "  #2" {
		t.Fatalf("unexpected schedule labels %q %q", rows[1][0], rows[2][0])
	}
	if rows[3][0] != "Advisors" || rows[3][1] != "no vestings" || rows[3][8] != "chain" {
		t.Fatalf("unexpected no vestings row %v", rows[3])
	}
	errs := r.ErrorMessages()
	if len(errs) != 1 || errs[0] != "0x1234...7890: execution reverted" {
		t.Fatalf("unexpected errors %v", errs)
	}
	if !r.HasMessage("served from cache") {
		t.Fatalf("expected debug log to be printed")
	}
}

func TestPrintContractSummary(t *testing.T) {
	s := resolver.ContractSummary{
		Contract: vesting.VestingContract{Name: "Team", Address: "0xc"},
		Token:    vesting.TokenContext{Symbol: "TKN"},
		Beneficiaries: []resolver.BeneficiaryResult{
			{Aggregate: vesting.BeneficiaryAggregate{Beneficiary: "0x1", Total: d(1000), Releasable: d(1), Remaining: d(1000)}},
			{Aggregate: vesting.BeneficiaryAggregate{Beneficiary: "0x2", NoVestings: true}, FromCache: true},
			{Aggregate: vesting.Failed("0x3", errors.New("timeout"))},
		},
		Total: d(1000), Releasable: d(1), Remaining: d(1000), Failed: 1, NoVestings: 1,
	}
	r := NewRecordingUI()
	PrintContractSummary(r, s)

	rows := r.Tables()[0].Rows
	if rows[0][1] != "1,000" || rows[1][1] != "no vestings" || rows[1][5] != "cache" || rows[2][1] != "error" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if !r.HasMessage("1,000 TKN") || len(r.ErrorMessages()) != 1 {
		t.Fatalf("unexpected totals %+v", r.Entries())
	}
}
