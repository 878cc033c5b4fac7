package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/corrlookup/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     string // "queries[2]", "batches[0]", "finalize", "keys"
	Key      string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Step)
	if e.Key != "" {
		fmt.Fprintf(&buf, " (key %s)", e.Key)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// assertError compares a lookup error against the expected code.
// An empty expected code means the lookup must succeed.
func assertError(step, key, expected string, err error) error {
	actual := string(ir.CodeOf(err))
	if err != nil && actual == "" {
		actual = err.Error()
	}

	switch {
	case expected == "" && err != nil:
		return &AssertionError{Step: step, Key: key, Expected: "success", Actual: actual}
	case expected != "" && err == nil:
		return &AssertionError{Step: step, Key: key, Expected: expected, Actual: "success"}
	case expected != actual:
		return &AssertionError{Step: step, Key: key, Expected: expected, Actual: actual}
	}
	return nil
}

// assertValues compares resolved values within tol.
func assertValues(step, key string, expected, actual []float64, tol float64) error {
	if !floatsEqual(expected, actual, tol) {
		return &AssertionError{
			Step:     step,
			Key:      key,
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
		}
	}
	return nil
}

// assertBatch compares a batch result indexed by group, element and
// variant.
func assertBatch(step, key string, expected, actual [][][]float64, tol float64) error {
	fail := &AssertionError{
		Step:     step,
		Key:      key,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	}
	if len(expected) != len(actual) {
		return fail
	}
	for i := range expected {
		if len(expected[i]) != len(actual[i]) {
			return fail
		}
		for j := range expected[i] {
			if !floatsEqual(expected[i][j], actual[i][j], tol) {
				return fail
			}
		}
	}
	return nil
}

// assertKeys requires the exact sorted key list.
func assertKeys(expected, actual []string) error {
	if len(expected) != len(actual) {
		return &AssertionError{Step: "keys", Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
	}
	for i := range expected {
		if expected[i] != actual[i] {
			return &AssertionError{Step: "keys", Expected: fmt.Sprint(expected), Actual: fmt.Sprint(actual)}
		}
	}
	return nil
}

// floatsEqual treats NaN as equal to NaN and infinities by sign.
func floatsEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		switch {
		case math.IsNaN(x) || math.IsNaN(y):
			if !(math.IsNaN(x) && math.IsNaN(y)) {
				return false
			}
		case math.IsInf(x, 0) || math.IsInf(y, 0):
			if x != y {
				return false
			}
		case math.Abs(x-y) > tol:
			return false
		}
	}
	return true
}
