package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares the collector's JSON report against a golden file.
// The golden file is stored in testdata/golden/{name}.golden.
//
// The report embeds the run ID and duration, so collectors compared this
// way should be built WithRunID and WithClock.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, c *Collector) {
	t.Helper()

	data, err := json.MarshalIndent(c.Report(), "", "  ")
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
