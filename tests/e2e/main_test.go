//go:build e2e

// E2E tests require the citation graph service running against a database:
// 1. docker run -d -p 5432:5432 -e POSTGRES_USER=citegraph -e POSTGRES_PASSWORD=citegraph -e POSTGRES_DB=citation_graph postgres:16-alpine
// 2. Start the server with the embedded worker disabled so tests observe the
//    queue untouched and sibling lookups offline:
//    CITEGRAPH_DATABASE_PASSWORD=citegraph CITEGRAPH_DATABASE_SSL_MODE=disable \
//    CITEGRAPH_DATABASE_MIGRATION_AUTO_RUN=true CITEGRAPH_WORKER_ENABLED=false \
//    CITEGRAPH_ARXIV_EXPORT_URL=http://127.0.0.1:1 go run ./cmd/server &
// 3. Run: go test -tags e2e -v ./tests/e2e/...

package e2e

import (
	"fmt"
	"os"
	"testing"
	"time"
)

var (
	apiBaseURL string
	runID      string
)

func TestMain(m *testing.M) {
	apiBaseURL = os.Getenv("CITEGRAPH_API_URL")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080"
	}

	// Identifiers carry a per-run suffix so reruns against the same database
	// never collide.
	runID = fmt.Sprintf("%d", time.Now().UnixNano())
	fmt.Printf("API: %s (run %s)\n", apiBaseURL, runID)

	os.Exit(m.Run())
}
