package postgres

import (
	"strings"
	"testing"
)

func TestSchemaDefinesTables(t *testing.T) {
	for _, table := range []string{"tokens", "vesting_contracts", "contract_abis", "beneficiary_vestings", "vesting_schedules"} {
		if !strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("schema does not create %s", table)
		}
	}
	if !strings.Contains(Schema, "ON DELETE CASCADE") {
		t.Errorf("schedule rows must be removed with their aggregate")
	}
}
