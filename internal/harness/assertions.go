package harness

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/stretchr/testify/assert"

	"github.com/vinay-bit/research-apps-php-sub002/internal/testerr"
)

// AssertionError is returned when an assertion fails.
// It includes the expected and actual outcome to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization ("equal", "throws", ...)
	Message  string // Caller message, or the assertion's default description
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (expected: %s, actual: %s)", e.Message, e.Expected, e.Actual)
}

// ErrorKind classifies assertion failures for testerr.KindOf.
func (e *AssertionError) ErrorKind() testerr.Kind {
	return testerr.KindAssertion
}

// fail builds an AssertionError. A caller message takes precedence over the
// default description; reason is appended when both are present.
func fail(typ string, msg []string, reason, expected, actual string) *AssertionError {
	text := reason
	if m := strings.TrimSpace(strings.Join(msg, " ")); m != "" {
		text = m
		if reason != "" {
			text = m + ": " + reason
		}
	}
	return &AssertionError{Type: typ, Message: text, Expected: expected, Actual: actual}
}

// describe renders a value together with its dynamic type, and its length
// for strings.
func describe(v any) string {
	if v == nil {
		return "<nil> (nil)"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q (string, length %d)", s, len(s))
	}
	return fmt.Sprintf("%#v (%T)", v, v)
}

// AssertTrue fails unless condition is true.
func AssertTrue(condition bool, msg ...string) error {
	if condition {
		return nil
	}
	return fail("true", msg, "condition is false", "true", "false")
}

// AssertFalse fails unless condition is false.
func AssertFalse(condition bool, msg ...string) error {
	if !condition {
		return nil
	}
	return fail("false", msg, "condition is true", "false", "true")
}

// AssertEqual fails unless expected and actual have the same dynamic type
// and are deeply equal. 1 and int64(1) are not equal.
func AssertEqual(expected, actual any, msg ...string) error {
	if reflect.TypeOf(expected) == reflect.TypeOf(actual) && assert.ObjectsAreEqual(expected, actual) {
		return nil
	}
	return fail("equal", msg, "values are not equal", describe(expected), describe(actual))
}

// AssertNotEqual fails when expected and actual would pass AssertEqual.
func AssertNotEqual(expected, actual any, msg ...string) error {
	if AssertEqual(expected, actual) != nil {
		return nil
	}
	return fail("not_equal", msg, "values are equal", "anything but "+describe(expected), describe(actual))
}

// isNull reports whether v is a nil interface, a typed nil (pointer, map,
// slice, chan, func, interface) or an invalid sql.Null* value.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if rv.IsNil() {
			return true
		}
	}
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		return err == nil && val == nil
	}
	return false
}

// AssertNull fails unless v is null.
func AssertNull(v any, msg ...string) error {
	if isNull(v) {
		return nil
	}
	return fail("null", msg, "value is not null", "null", describe(v))
}

// AssertNotNull fails when v is null.
func AssertNotNull(v any, msg ...string) error {
	if !isNull(v) {
		return nil
	}
	return fail("not_null", msg, "value is null", "non-null value", describe(v))
}

// AssertThrows runs op and compares the Kind of the error it returns.
//
// It fails when op returns nil ("expected exception was not thrown") and
// when the error carries a different Kind. op should not panic; a panic
// propagates to the caller's fault boundary.
func AssertThrows(op func() error, kind testerr.Kind, msg ...string) error {
	err := op()
	if err == nil {
		return fail("throws", msg, "expected exception was not thrown", string(kind), "no error")
	}
	if got := testerr.KindOf(err); got != kind {
		return fail("throws", msg, "exception kind mismatch", string(kind), fmt.Sprintf("%s (%v)", got, err))
	}
	return nil
}

// AssertMatches fails unless s matches the regular expression pattern.
func AssertMatches(pattern, s string, msg ...string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fail("matches", msg, "invalid pattern", pattern, err.Error())
	}
	if re.MatchString(s) {
		return nil
	}
	return fail("matches", msg, "value does not match pattern", pattern, describe(s))
}

// AssertContains fails unless haystack contains every needle.
func AssertContains(haystack []string, needles []string, msg ...string) error {
	have := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		have[h] = true
	}
	var missing []string
	for _, n := range needles {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fail("contains", msg, "missing "+strings.Join(missing, ", "),
		fmt.Sprintf("%v", needles), fmt.Sprintf("%v", haystack))
}

// AssertCount fails unless actual equals expected. It is the numeric
// companion of AssertEqual that tolerates different integer types.
func AssertCount[T ~int | ~int32 | ~int64](expected int, actual T, msg ...string) error {
	if int64(expected) == int64(actual) {
		return nil
	}
	return fail("count", msg, "unexpected count", fmt.Sprint(expected), fmt.Sprint(actual))
}
