package sqlite

import (
	"go/build"
	"slices"
	"strings"
	"testing"
)

func TestStoreWrapsMemoryOnly(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	if !slices.Contains(pkg.Imports, "modernc.org/sqlite") {
		t.Fatalf("sqlite store must register the pure go driver, imports: %v", pkg.Imports)
	}
	for _, imp := range pkg.Imports {
		switch {
		case imp == "stockcore/pkg/domain", imp == "stockcore/internal/infra/persistence/memory":
		case strings.HasPrefix(imp, "stockcore/"):
			t.Errorf("sqlite store must not depend on %s", imp)
		case strings.Contains(imp, "sqlite3"):
			t.Errorf("cgo sqlite driver %s is not allowed", imp)
		}
	}
}
