package session

import (
	"testing"

	"go.uber.org/goleak"
)

// Session tests run real sockets against real rooms; make sure every
// pump and actor is gone when the package finishes.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
