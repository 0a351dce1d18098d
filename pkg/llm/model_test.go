package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

var _ = Describe("ModelDescriptor", func() {
	const body = `{"models":[
		{"name":"gemma3:latest","size":3338801804,"modified_at":"2025-04-01T10:00:00Z","details":{"family":"gemma3"}},
		{"name":"llama3.2:1b","digest":"abc"},
		{"name":"gemma3:latest"}
	]}`

	It("preserves order and duplicates", func() {
		var resp llm.ListModelsResponse
		Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())

		Expect(resp.Models).To(HaveLen(3))
		Expect(resp.Models[0].Name).To(Equal("gemma3:latest"))
		Expect(resp.Models[1].Name).To(Equal("llama3.2:1b"))
		Expect(resp.Models[2].Name).To(Equal("gemma3:latest"))
	})

	It("keeps server metadata opaque", func() {
		var resp llm.ListModelsResponse
		Expect(json.Unmarshal([]byte(body), &resp)).To(Succeed())

		m := resp.Models[0]
		Expect(m.Metadata).To(HaveKey("details"))
		Expect(m.Metadata).NotTo(HaveKey("name"))
		Expect(m.Size()).To(Equal(int64(3338801804)))
		Expect(m.ModifiedAt().Year()).To(Equal(2025))
	})

	It("writes the server shape back", func() {
		var m llm.ModelDescriptor
		Expect(json.Unmarshal([]byte(`{"name":"x","digest":"abc"}`), &m)).To(Succeed())

		out, err := json.Marshal(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"name":"x","digest":"abc"}`))
	})

	It("leaves Models nil when the key is missing", func() {
		var resp llm.ListModelsResponse
		Expect(json.Unmarshal([]byte(`{"other":[]}`), &resp)).To(Succeed())
		Expect(resp.Models).To(BeNil())
	})
})

var _ = Describe("GenerateRequest", func() {
	It("omits empty system prompt and options", func() {
		out, err := json.Marshal(llm.GenerateRequest{Model: "m", Prompt: "hi", Stream: true, Temperature: 0.5})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"model":"m","prompt":"hi","stream":true,"temperature":0.5}`))
	})

	It("passes decoding hints through", func() {
		req := llm.GenerateRequest{
			Model:   "m",
			Prompt:  "hi",
			System:  "be brief",
			Options: llm.Options{"num_gpu": 1, "num_thread": 8},
		}
		out, err := json.Marshal(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"model":"m","prompt":"hi","stream":false,"temperature":0,"system":"be brief","options":{"num_gpu":1,"num_thread":8}}`))
	})
})
