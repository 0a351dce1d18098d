package ollama_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/endpoint"
	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
)

var _ = Describe("ListModels", func() {
	var (
		ctx    context.Context
		server *fixture
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	list := func() []llm.ModelDescriptor {
		return ollama.New(endpoint.New(server.URL, "", "")).ListModels(ctx)
	}

	It("returns the catalog in server order with metadata", func() {
		server = statusFixture(http.StatusOK, `{"models":[
			{"name":"llama3:8b","size":4661224676,"details":{"family":"llama"}},
			{"name":"gemma3:latest","modified_at":"2025-03-12T10:00:00Z"},
			{"name":"llama3:8b"}
		]}`)

		models := list()
		Expect(models).To(HaveLen(3))
		Expect(models[0].Name).To(Equal("llama3:8b"))
		Expect(models[1].Name).To(Equal("gemma3:latest"))
		Expect(models[2].Name).To(Equal("llama3:8b"))
		Expect(models[0].Size()).To(Equal(int64(4661224676)))
		Expect(string(models[0].Metadata["details"])).To(MatchJSON(`{"family":"llama"}`))
		Expect(models[1].ModifiedAt().Year()).To(Equal(2025))

		Expect(server.Last().Method).To(Equal(http.MethodGet))
		Expect(server.Last().Path).To(Equal("/api/tags"))
	})

	It("returns an empty catalog when the server has no models", func() {
		server = statusFixture(http.StatusOK, `{"models":[]}`)

		models := list()
		Expect(models).NotTo(BeNil())
		Expect(models).To(BeEmpty())
	})

	DescribeTable("degrades to an empty catalog",
		func(status int, body string) {
			server = statusFixture(status, body)

			models := list()
			Expect(models).NotTo(BeNil())
			Expect(models).To(BeEmpty())
			Expect(server.Hits()).To(Equal(1))
		},
		Entry("on a server error", http.StatusInternalServerError, `{"models":[{"name":"x"}]}`),
		Entry("on unauthorized", http.StatusUnauthorized, ``),
		Entry("on a malformed body", http.StatusOK, `{"models":[`),
		Entry("on a missing models key", http.StatusOK, `{"tags":[]}`),
		Entry("on a null models key", http.StatusOK, `{"models":null}`),
	)

	It("degrades to an empty catalog when the server is unreachable", func() {
		dead := statusFixture(http.StatusOK, "")
		url := dead.URL
		dead.Close()

		models := ollama.New(endpoint.New(url, "", "")).ListModels(ctx)
		Expect(models).NotTo(BeNil())
		Expect(models).To(BeEmpty())
	})

	It("keeps unnamed entries in the catalog but not in the picker", func() {
		server = statusFixture(http.StatusOK, `{"models":[null,{"name":"a"},{"size":12}]}`)

		models := list()
		Expect(models).To(HaveLen(3))
		Expect(ollama.SelectableModels(models, ollama.DefaultModel)).To(Equal([]string{"a"}))
	})

	It("attaches basic auth", func() {
		server = statusFixture(http.StatusOK, `{"models":[]}`)

		ollama.New(endpoint.New(server.URL, "alice", "secret")).ListModels(ctx)

		Expect(server.Last().HasAuth).To(BeTrue())
		Expect(server.Last().Username).To(Equal("alice"))
	})
})

var _ = Describe("SelectableModels", func() {
	It("lists catalog names", func() {
		names := ollama.SelectableModels([]llm.ModelDescriptor{{Name: "a"}, {Name: "b"}}, ollama.DefaultModel)
		Expect(names).To(Equal([]string{"a", "b"}))
	})

	It("offers only the fallback for an empty catalog", func() {
		Expect(ollama.SelectableModels(nil, ollama.DefaultModel)).To(Equal([]string{"gemma3:latest"}))
	})

	It("skips entries without a name", func() {
		names := ollama.SelectableModels([]llm.ModelDescriptor{{}, {Name: "a"}, {Name: ""}}, ollama.DefaultModel)
		Expect(names).To(Equal([]string{"a"}))
	})

	It("offers the fallback when no entry has a name", func() {
		names := ollama.SelectableModels([]llm.ModelDescriptor{{}, {}}, ollama.DefaultModel)
		Expect(names).To(Equal([]string{"gemma3:latest"}))
	})
})
