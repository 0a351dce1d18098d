package endpoint_test

import (
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/endpoint"
)

var _ = Describe("Endpoint", func() {
	Describe("New", func() {
		It("keeps credentials when both halves are present", func() {
			ep := endpoint.New("http://example:11434/", "alice", "secret")

			auth, ok := ep.Auth()
			Expect(ok).To(BeTrue())
			Expect(auth.Username).To(Equal("alice"))
			Expect(auth.Password).To(Equal("secret"))
			Expect(ep.BaseURL()).To(Equal("http://example:11434"))
		})

		It("drops a username without a password", func() {
			_, ok := endpoint.New("http://example", "alice", "").Auth()
			Expect(ok).To(BeFalse())
		})

		It("drops a password without a username", func() {
			_, ok := endpoint.New("http://example", "", "secret").Auth()
			Expect(ok).To(BeFalse())
		})

		It("falls back to the loopback default", func() {
			Expect(endpoint.New("", "", "").BaseURL()).To(Equal(endpoint.DefaultBaseURL))
			Expect(endpoint.Endpoint{}.BaseURL()).To(Equal(endpoint.DefaultBaseURL))
		})

		It("joins paths", func() {
			ep := endpoint.New("http://example/", "", "")
			Expect(ep.URL("/api/tags")).To(Equal("http://example/api/tags"))
			Expect(ep.URL("api/generate")).To(Equal("http://example/api/generate"))
		})

		It("attaches basic auth only when configured", func() {
			req, _ := http.NewRequest(http.MethodGet, "http://example", nil)
			endpoint.New("http://example", "alice", "").Apply(req)
			_, _, ok := req.BasicAuth()
			Expect(ok).To(BeFalse())

			endpoint.New("http://example", "alice", "secret").Apply(req)
			user, pass, ok := req.BasicAuth()
			Expect(ok).To(BeTrue())
			Expect(user).To(Equal("alice"))
			Expect(pass).To(Equal("secret"))
		})

		It("never prints credentials", func() {
			ep := endpoint.New("http://example", "alice", "secret")
			Expect(ep.String()).NotTo(ContainSubstring("secret"))
		})
	})

	Describe("Resolve", func() {
		secrets := endpoint.MapLookup(map[string]string{
			endpoint.KeyBaseURL:  "http://secret-store",
			endpoint.KeyUsername: "secret-user",
		})
		env := endpoint.MapLookup(map[string]string{
			endpoint.KeyBaseURL:  "http://env",
			endpoint.KeyUsername: "env-user",
			endpoint.KeyPassword: "env-pass",
		})

		It("prefers explicit values", func() {
			ep := endpoint.Resolve(endpoint.Values{BaseURL: "http://explicit"}, secrets, env)
			Expect(ep.BaseURL()).To(Equal("http://explicit"))
		})

		It("prefers the secret store over the environment", func() {
			ep := endpoint.Resolve(endpoint.Values{}, secrets, env)
			Expect(ep.BaseURL()).To(Equal("http://secret-store"))
		})

		It("resolves each value independently", func() {
			ep := endpoint.Resolve(endpoint.Values{}, secrets, env)
			auth, ok := ep.Auth()
			Expect(ok).To(BeTrue())
			Expect(auth.Username).To(Equal("secret-user"))
			Expect(auth.Password).To(Equal("env-pass"))
		})

		It("uses the default when nothing is set", func() {
			ep := endpoint.Resolve(endpoint.Values{}, endpoint.MapLookup(nil), nil)
			Expect(ep.BaseURL()).To(Equal(endpoint.DefaultBaseURL))
			_, ok := ep.Auth()
			Expect(ok).To(BeFalse())
		})

		It("treats empty values as absent", func() {
			blank := endpoint.MapLookup(map[string]string{endpoint.KeyBaseURL: ""})
			ep := endpoint.Resolve(endpoint.Values{}, blank, env)
			Expect(ep.BaseURL()).To(Equal("http://env"))
		})

		It("treats a partial resolved pair as no auth", func() {
			onlyUser := endpoint.MapLookup(map[string]string{endpoint.KeyUsername: "u"})
			_, ok := endpoint.Resolve(endpoint.Values{}, onlyUser).Auth()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("SecretsFile", func() {
		It("reads string keys from TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "secrets.toml")
			Expect(os.WriteFile(path, []byte("OLLAMA_BASE_URL = \"http://tunnel\"\nPORT = 11434\n"), 0o600)).To(Succeed())

			lookup, err := endpoint.SecretsFile(path)
			Expect(err).NotTo(HaveOccurred())

			v, ok := lookup(endpoint.KeyBaseURL)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("http://tunnel"))

			_, ok = lookup("PORT")
			Expect(ok).To(BeFalse())
		})

		It("treats a missing file as an empty store", func() {
			lookup, err := endpoint.SecretsFile(filepath.Join(GinkgoT().TempDir(), "nope.toml"))
			Expect(err).NotTo(HaveOccurred())
			_, ok := lookup(endpoint.KeyBaseURL)
			Expect(ok).To(BeFalse())
		})

		It("rejects malformed TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "secrets.toml")
			Expect(os.WriteFile(path, []byte("not = = toml"), 0o600)).To(Succeed())

			_, err := endpoint.SecretsFile(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Environment", func() {
		It("falls back to the dotenv file", func() {
			path := filepath.Join(GinkgoT().TempDir(), ".env")
			Expect(os.WriteFile(path, []byte("OLLACHAT_TEST_ONLY_KEY=from-file\n"), 0o600)).To(Succeed())

			lookup, err := endpoint.Environment(path)
			Expect(err).NotTo(HaveOccurred())

			v, ok := lookup("OLLACHAT_TEST_ONLY_KEY")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("from-file"))
			_, set := os.LookupEnv("OLLACHAT_TEST_ONLY_KEY")
			Expect(set).To(BeFalse())
		})

		It("lets the process environment win", func() {
			GinkgoT().Setenv("OLLACHAT_TEST_ONLY_KEY", "from-process")
			path := filepath.Join(GinkgoT().TempDir(), ".env")
			Expect(os.WriteFile(path, []byte("OLLACHAT_TEST_ONLY_KEY=from-file\n"), 0o600)).To(Succeed())

			lookup, err := endpoint.Environment(path)
			Expect(err).NotTo(HaveOccurred())

			v, _ := lookup("OLLACHAT_TEST_ONLY_KEY")
			Expect(v).To(Equal("from-process"))
		})

		It("ignores a missing dotenv file", func() {
			_, err := endpoint.Environment(filepath.Join(GinkgoT().TempDir(), ".env"))
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
