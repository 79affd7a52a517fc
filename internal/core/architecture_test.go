package core

import (
	"strings"
	"testing"

	"fairtrace/testutil"
)

func TestCoreDoesNotImportOuterLayers(t *testing.T) {
	outer := func(path string) bool {
		return strings.HasPrefix(path, "fairtrace/internal/config") || strings.HasPrefix(path, "fairtrace/internal/obs")
	}
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.AdapterImport, testutil.CommandImport, outer), "core is wired by cmd, not the other way round")
}
