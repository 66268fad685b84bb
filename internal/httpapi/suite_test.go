package httpapi

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// TestHTTPAPIIntegration runs the Ginkgo specs below, mirroring the
// teacher's split between table-driven testify unit tests (server_test.go)
// and a Ginkgo/Gomega integration suite for request/response-cycle
// behavior (test/integration/gateway's CORS suite).
func TestHTTPAPIIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "httpapi integration suite")
}
