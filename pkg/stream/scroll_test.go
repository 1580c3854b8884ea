package stream

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scrolling", func() {
	Describe("FollowBottom", func() {
		It("follows to the new bottom when within 100px of the bottom", func() {
			c := &fakeNode{top: 850, height: 1000, client: 100}
			FollowBottom(c, func() { c.grow(200) })
			Expect(c.ScrollTop()).To(Equal(1100.0))
		})

		It("follows when exactly 100px from the bottom", func() {
			c := &fakeNode{top: 800, height: 1000, client: 100}
			FollowBottom(c, func() { c.grow(50) })
			Expect(c.ScrollTop()).To(Equal(950.0))
		})

		It("leaves a user who scrolled up in place", func() {
			c := &fakeNode{top: 700, height: 1000, client: 100}
			FollowBottom(c, func() { c.grow(200) })
			Expect(c.ScrollTop()).To(Equal(700.0))
		})

		It("keeps short content at the top", func() {
			c := &fakeNode{top: 0, height: 50, client: 100}
			FollowBottom(c, func() { c.grow(10) })
			Expect(c.ScrollTop()).To(Equal(0.0))
		})

		It("runs the update without a container", func() {
			ran := false
			FollowBottom(nil, func() { ran = true })
			Expect(ran).To(BeTrue())
		})
	})

	Describe("FindScrollContainer", func() {
		It("returns the nearest scrollable ancestor", func() {
			outer := &fakeNode{overflow: OverflowScroll}
			inner := &fakeNode{parent: outer, overflow: OverflowAuto}
			hidden := &fakeNode{parent: inner, overflow: OverflowHidden}
			mount := &plainNode{parent: hidden}

			Expect(FindScrollContainer(mount, nil)).To(BeIdenticalTo(inner))
		})

		It("considers the starting node itself", func() {
			n := &fakeNode{overflow: OverflowAuto}
			Expect(FindScrollContainer(n, nil)).To(BeIdenticalTo(n))
		})

		It("falls back to the viewport", func() {
			viewport := &fakeNode{}
			mount := &plainNode{parent: &plainNode{}}
			Expect(FindScrollContainer(mount, viewport)).To(BeIdenticalTo(viewport))
		})
	})
})
