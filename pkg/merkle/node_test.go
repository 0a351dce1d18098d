package merkle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/merkle"
)

var _ = Describe("Node", func() {
	Describe("NewNode", func() {
		Context("when creating a root node (no parent)", func() {
			It("creates a node with the given bucket", func() {
				node := merkle.NewNode(userTurn("hello world"), nil)

				Expect(node.Bucket.Content).To(Equal("hello world"))
				Expect(node.Bucket.Type).To(Equal(merkle.BucketTypeMessage))
			})

			It("sets ParentHash to nil for root nodes", func() {
				node := merkle.NewNode(userTurn("test"), nil)

				Expect(node.ParentHash).To(BeNil())
				Expect(node.IsRoot()).To(BeTrue())
			})

			It("produces consistent hashes for the same content", func() {
				node1 := merkle.NewNode(userTurn("same content"), nil)
				node2 := merkle.NewNode(userTurn("same content"), nil)

				Expect(node1.Hash).To(Equal(node2.Hash))
			})

			It("produces different hashes for different content", func() {
				node1 := merkle.NewNode(userTurn("content A"), nil)
				node2 := merkle.NewNode(userTurn("content B"), nil)

				Expect(node1.Hash).NotTo(Equal(node2.Hash))
			})

			It("hashes the role, model and error", func() {
				base := merkle.NewNode(assistantTurn("same"), nil)

				asUser := assistantTurn("same")
				asUser.Role = "user"
				otherModel := assistantTurn("same")
				otherModel.Model = "llama3:8b"
				failed := assistantTurn("same")
				failed.Error = "server returned 500"

				Expect(merkle.NewNode(asUser, nil).Hash).NotTo(Equal(base.Hash))
				Expect(merkle.NewNode(otherModel, nil).Hash).NotTo(Equal(base.Hash))
				Expect(merkle.NewNode(failed, nil).Hash).NotTo(Equal(base.Hash))
			})
		})

		Context("when creating a child node (with parent)", func() {
			var parent *merkle.Node

			BeforeEach(func() {
				parent = merkle.NewNode(userTurn("parent content"), nil)
			})

			It("links the child to the parent via ParentHash", func() {
				child := merkle.NewNode(assistantTurn("child content"), parent)

				Expect(child.ParentHash).NotTo(BeNil())
				Expect(*child.ParentHash).To(Equal(parent.Hash))
				Expect(child.IsRoot()).To(BeFalse())
			})

			It("creates a chain of nodes", func() {
				child1 := merkle.NewNode(assistantTurn("child 1"), parent)
				child2 := merkle.NewNode(userTurn("child 2"), child1)
				child3 := merkle.NewNode(assistantTurn("child 3"), child2)

				Expect(*child1.ParentHash).To(Equal(parent.Hash))
				Expect(*child2.ParentHash).To(Equal(child1.Hash))
				Expect(*child3.ParentHash).To(Equal(child2.Hash))
			})

			It("produces different hashes for same content with different parents", func() {
				parent2 := merkle.NewNode(userTurn("different parent"), nil)
				child1 := merkle.NewNode(assistantTurn("same content"), parent)
				child2 := merkle.NewNode(assistantTurn("same content"), parent2)

				Expect(child1.Hash).NotTo(Equal(child2.Hash))
			})
		})
	})

	Describe("Hash computation", func() {
		It("produces a valid SHA-256 hex string (64 characters)", func() {
			node := merkle.NewNode(userTurn("test"), nil)

			Expect(node.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
		})
	})

	Describe("Valid", func() {
		It("accepts an untouched node", func() {
			Expect(merkle.NewNode(userTurn("test"), nil).Valid()).To(BeTrue())
		})

		It("rejects a node whose content was altered", func() {
			node := merkle.NewNode(userTurn("test"), nil)
			node.Bucket.Content = "tampered"

			Expect(node.Valid()).To(BeFalse())
		})
	})
})
