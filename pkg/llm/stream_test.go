package llm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

var _ = Describe("Fragment", func() {
	It("distinguishes text from errors by tag", func() {
		Expect(llm.TextFragment("hi").IsError()).To(BeFalse())
		Expect(llm.ErrorFragment(errors.New("boom")).IsError()).To(BeTrue())
	})

	It("renders errors as their message", func() {
		Expect(llm.ErrorFragment(errors.New("boom")).String()).To(Equal("boom"))
		Expect(llm.TextFragment("hi").String()).To(Equal("hi"))
	})
})

var _ = Describe("Assembler", func() {
	var a *llm.Assembler

	BeforeEach(func() {
		a = &llm.Assembler{}
	})

	It("concatenates fragments in order", func() {
		Expect(a.Add(llm.TextFragment("He"))).To(Equal("He"))
		Expect(a.Add(llm.TextFragment("llo"))).To(Equal("Hello"))
		Expect(a.Text()).To(Equal("Hello"))
		Expect(a.Count()).To(Equal(2))
		Expect(a.Err()).NotTo(HaveOccurred())
	})

	It("keeps the text received before an error", func() {
		a.Add(llm.TextFragment("partial"))
		Expect(a.Add(llm.ErrorFragment(errors.New("reset")))).To(Equal("partial"))
		Expect(a.Err()).To(MatchError("reset"))
		Expect(a.Text()).To(Equal("partial"))
	})

	It("keeps only the first error", func() {
		a.Add(llm.ErrorFragment(errors.New("first")))
		a.Add(llm.ErrorFragment(errors.New("second")))
		Expect(a.Err()).To(MatchError("first"))
	})

	It("does not merge or deduplicate repeated fragments", func() {
		a.Add(llm.TextFragment("a"))
		a.Add(llm.TextFragment("a"))
		Expect(a.Text()).To(Equal("aa"))
	})

	It("resets", func() {
		a.Add(llm.TextFragment("x"))
		a.Add(llm.ErrorFragment(errors.New("y")))
		a.Reset()
		Expect(a.Text()).To(BeEmpty())
		Expect(a.Err()).NotTo(HaveOccurred())
		Expect(a.Count()).To(BeZero())
	})
})
