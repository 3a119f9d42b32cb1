package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32ooo/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	var bp *pipeline.BranchPredictor

	BeforeEach(func() {
		bp = pipeline.NewBranchPredictor()
	})

	It("predicts not-taken for an unseen PC", func() {
		Expect(bp.Predict(0x1000)).To(BeFalse())
	})

	It("remembers a single taken outcome without flipping the prediction", func() {
		bp.Predict(0x1000)
		bp.Update(0x1000, true)
		Expect(bp.Predict(0x1000)).To(BeFalse())
	})

	It("flips to predict taken after two consecutive taken outcomes", func() {
		bp.Predict(0x1000)
		bp.Update(0x1000, true)
		bp.Predict(0x1000)
		bp.Update(0x1000, true)
		Expect(bp.Predict(0x1000)).To(BeTrue())
	})

	It("requires two consecutive not-taken outcomes to flip back from taken", func() {
		bp.Predict(0x1000)
		bp.Update(0x1000, true)
		bp.Predict(0x1000)
		bp.Update(0x1000, true) // now predicting taken

		bp.Predict(0x1000)
		bp.Update(0x1000, false) // a single not-taken doesn't flip it yet
		Expect(bp.Predict(0x1000)).To(BeTrue())

		bp.Update(0x1000, false) // second consecutive not-taken flips it
		Expect(bp.Predict(0x1000)).To(BeFalse())
	})

	It("tracks prediction accuracy", func() {
		bp.Predict(0x1000)
		bp.Update(0x1000, false) // predicted false, correct
		bp.Predict(0x1000)
		bp.Update(0x1000, true) // predicted false, incorrect

		stats := bp.Stats()
		Expect(stats.Predictions).To(Equal(uint64(2)))
		Expect(stats.Correct).To(Equal(uint64(1)))
		Expect(stats.Accuracy()).To(Equal(50.0))
	})

	It("resets all state", func() {
		bp.Predict(0x1000)
		bp.Update(0x1000, true)
		bp.Reset()

		Expect(bp.Stats().Predictions).To(Equal(uint64(0)))
		Expect(bp.Predict(0x1000)).To(BeFalse())
	})
})
