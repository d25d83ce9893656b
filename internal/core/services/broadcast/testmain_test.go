package broadcast

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no goroutine outlives the tests in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
