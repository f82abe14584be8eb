// Package harness provides the assertion primitives and the result
// collector the suites report through.
//
// # Assertions
//
// Every Assert* function returns nil on success or an *AssertionError on
// failure. Assertions never panic and never touch the database. Errors
// carry testerr.KindAssertion so callers can tell an assertion failure
// from a database failure:
//
//	err := harness.AssertEqual("STU", prefix, "identifier prefix")
//	if err != nil {
//	    return err
//	}
//
// AssertThrows compares the Kind of the error an operation returns:
//
//	err := harness.AssertThrows(func() error {
//	    _, err := f.CreateTestUser(ctx, fixtures.Row{"email_id": email})
//	    return err
//	}, testerr.KindConstraintViolation, "duplicate email")
//
// # Collecting Results
//
// A Collector is passed explicitly to every suite. Tests are recorded in
// order and keyed by their case-folded name, so rerunning "Unique Email"
// as "unique email" replaces the earlier outcome:
//
//	c := harness.NewCollector(logger)
//	c.Run("Database connection", func() error { ... })
//	c.PrintResults(os.Stdout)
//
// Summaries and JSON reports are derived on demand; nothing is cached.
package harness
