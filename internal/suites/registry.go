// Package suites holds the test suites run against the research-apps
// schema. Suites are plain Go values registered in a static registry.
package suites

import (
	"github.com/vinay-bit/research-apps-php-sub002/internal/runner"
)

// Registered suite names.
const (
	NameSchema      = "Database Schema"
	NameConstraints = "Constraints"
	NameFixtures    = "Fixtures"
	NameTimeEntries = "Time Entries"
)

// DefaultRegistry returns a registry with every suite, schema first.
func DefaultRegistry() *runner.Registry {
	r := runner.NewRegistry()
	r.MustRegister(NameSchema, func() runner.Suite { return &Schema{} })
	r.MustRegister(NameConstraints, func() runner.Suite { return &Constraints{} })
	r.MustRegister(NameFixtures, func() runner.Suite { return &Fixtures{} })
	r.MustRegister(NameTimeEntries, func() runner.Suite { return &TimeEntries{} })
	return r
}
