package sim

import (
	"github.com/rs/zerolog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/galtonsim/internal/galton"
)

var _ = Describe("Clock phases", func() {
	var c *Clock

	BeforeEach(func() {
		var err error
		c, err = New(testConfig(6, 5, 21), zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts idle and ignores ticks", func() {
		Expect(c.Phase()).To(Equal(galton.Idle))
		snap := c.Tick(testDt)
		Expect(snap.Tick).To(BeZero())
		Expect(snap.Balls).To(BeEmpty())
	})

	Context("when running", func() {
		BeforeEach(func() {
			Expect(c.Start()).To(Succeed())
		})

		It("spawns and advances balls", func() {
			snap := c.Tick(testDt)
			Expect(snap.Phase).To(Equal(galton.Running))
			Expect(snap.Balls).To(HaveLen(5))
			Expect(snap.Tick).To(Equal(uint64(1)))
		})

		It("rejects a second start", func() {
			Expect(c.Start()).To(MatchError(galton.ErrInvalidTransition))
		})

		It("cannot resume without pausing", func() {
			Expect(c.Resume()).To(MatchError(galton.ErrInvalidTransition))
		})

		It("freezes while paused", func() {
			c.Tick(testDt)
			Expect(c.Pause()).To(Succeed())

			before := c.Snapshot()
			after := c.Tick(testDt)
			Expect(after).To(Equal(before))

			Expect(c.Resume()).To(Succeed())
			Expect(c.Tick(testDt).Tick).To(Equal(before.Tick + 1))
		})

		It("toggles between running and paused", func() {
			Expect(c.Toggle()).To(Succeed())
			Expect(c.Phase()).To(Equal(galton.Paused))
			Expect(c.Toggle()).To(Succeed())
			Expect(c.Phase()).To(Equal(galton.Running))
		})

		It("completes once the budget has landed", func() {
			for i := 0; i < 100000 && c.Phase() == galton.Running; i++ {
				c.Tick(testDt)
			}
			Expect(c.Phase()).To(Equal(galton.Complete))
			Expect(c.Snapshot().Settled).To(Equal(5))
			Expect(c.Start()).To(MatchError(galton.ErrInvalidTransition))
			Expect(c.Toggle()).To(MatchError(galton.ErrInvalidTransition))
		})
	})

	DescribeTable("reset returns to idle",
		func(prepare func(*Clock)) {
			prepare(c)
			c.Reset()
			Expect(c.Phase()).To(Equal(galton.Idle))
			Expect(c.Snapshot().Balls).To(BeEmpty())
			Expect(c.Snapshot().Settled).To(BeZero())
		},
		Entry("from idle", func(c *Clock) {}),
		Entry("from running", func(c *Clock) {
			c.Start()
			c.Tick(testDt)
		}),
		Entry("from paused", func(c *Clock) {
			c.Start()
			c.Tick(testDt)
			c.Pause()
		}),
		Entry("from complete", func(c *Clock) {
			c.Start()
			for i := 0; i < 100000 && c.Phase() == galton.Running; i++ {
				c.Tick(testDt)
			}
		}),
	)
})
