package httpapi

import (
	"net/http"
	"net/http/httptest"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/keystore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Integration suite for the authenticated HTTP surface (spec.md §4.3), in
// the teacher's request/response-cycle style rather than unit-level
// middleware assertions.
var _ = Describe("Authenticated HTTP surface", Label("integration", "httpapi"), func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv(GinkgoT(), keystore.ScopeDoDiscovery)
	})

	It("should respond to CORS preflight without requiring authentication", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/control/discover", nil)
		req.Header.Set("Origin", "https://example.org")
		req.Header.Set("Access-Control-Request-Method", "POST")

		env.server.httpServer.Handler.ServeHTTP(rec, req)

		Expect(rec.Code).NotTo(Equal(http.StatusUnauthorized))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).NotTo(BeEmpty())
	})

	It("should trigger discovery for a key scoped to doDiscovery", func() {
		resp := env.do(GinkgoT(), http.MethodPost, "/api/v1/control/discover", env.key)
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
	})

	It("should reject an unscoped admin call even with a valid key", func() {
		resp := env.do(GinkgoT(), http.MethodGet, "/api/v1/admin/scope?key=x", env.key)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("should reject every non-OPTIONS request carrying no api_key header", func() {
		resp := env.do(GinkgoT(), http.MethodGet, "/api/v1/metadata/dives", "")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})
})
