package ledger

import (
	"testing"

	"fairtrace/testutil"
)

func TestLedgerAdapterUsesInterfacesOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImport, testutil.CommandImport), "the HTTP surface reaches storage through core and the blob interface")
}
