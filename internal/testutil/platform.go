package testutil

import (
	"wake-go/internal/platform"
)

// NewTestPlatform creates an in-memory platform with every permission
// granted. Use SetFaults on the result to make calls fail.
func NewTestPlatform() *platform.Simulator {
	return platform.NewMemoryPlatform()
}
