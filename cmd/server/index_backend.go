package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"stargen.ai/internal/persistence/indexdb"
)

// openIndex returns nil, nil when indexing is switched off.
func openIndex(dataDir, backend string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "systems.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported STARGEN_INDEX_BACKEND: %s", backend)
	}
}
