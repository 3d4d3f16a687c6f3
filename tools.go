//go:build tools

package tools

// Mocks under pkg/transport/mocks are generated by mockery v2, used as an
// installed binary. Run: mockery (from the module root, see .mockery.yaml).
