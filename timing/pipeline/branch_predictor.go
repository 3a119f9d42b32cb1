package pipeline

// BranchPredictorStats holds statistics for the branch predictor, in the
// teacher's plain-counter-struct-with-accessor style.
type BranchPredictorStats struct {
	Predictions    uint64
	Correct        uint64
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// branchState is a single PC's prediction state: the bit currently
// predicted, and the outcome of the most recent retirement — exactly the
// (predicted_taken, last_actual_taken) tuple of spec.md §4.2 /
// original_source/src/pipeline/branch_predictor.rs.
type branchState struct {
	predicted bool
	lastTaken bool
}

// BranchPredictor implements the one-bit-history predictor of spec.md
// §4.2: unseen PCs start (false, false); actual-taken after not-taken
// remembers taken without flipping the prediction; two consecutive takens
// (or not-takens) flip it. This is deliberately much simpler than the
// teacher's 2-bit-saturating-counter + BTB design — RV32 JALR/JAL targets
// are computed by the address unit, not predicted, so there is no BTB to
// maintain here.
type BranchPredictor struct {
	state map[uint32]*branchState
	stats BranchPredictorStats
}

// NewBranchPredictor creates an empty branch predictor.
func NewBranchPredictor() *BranchPredictor {
	return &BranchPredictor{state: make(map[uint32]*branchState)}
}

func (bp *BranchPredictor) entry(pc uint32) *branchState {
	e, ok := bp.state[pc]
	if !ok {
		e = &branchState{}
		bp.state[pc] = e
	}
	return e
}

// Predict returns the current taken/not-taken prediction for pc.
func (bp *BranchPredictor) Predict(pc uint32) bool {
	bp.stats.Predictions++
	return bp.entry(pc).predicted
}

// Update applies the four-case update table after a branch retires with
// actual outcome taken.
func (bp *BranchPredictor) Update(pc uint32, taken bool) {
	e := bp.entry(pc)
	if e.predicted == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	switch {
	case e.lastTaken && !taken:
		e.lastTaken = false
	case !e.lastTaken && !taken:
		e.predicted = false
		e.lastTaken = false
	case e.lastTaken && taken:
		e.predicted = true
		e.lastTaken = true
	case !e.lastTaken && taken:
		e.lastTaken = true
	}
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	bp.state = make(map[uint32]*branchState)
	bp.stats = BranchPredictorStats{}
}
