package scenario

import "math/rand"

const (
	shortTemplateRepeats = 2
	longTemplateRepeats  = 3

	stepForwardProbability  = 0.49
	stepBackwardProbability = 0.49
)

// Start quadrants and the fixed disconnect splices of the two-player walk.
var (
	playerOneStart      Quadrant = 1
	playerTwoStart      Quadrant = 3
	playerOneDisconnect          = []Quadrant{QuadrantDisconnected, 2}
	playerTwoDisconnect          = []Quadrant{3, 4}
)

// Generate commits the full scenario for a session before any network
// interaction takes place. It is a pure function of rng.
func Generate(rng *rand.Rand, players int) *Scenario {
	if rng == nil {
		rng = NewRNG("", "scenario")
	}
	long := rng.Intn(2) == 1

	actionsOne := actionProfile(rng, long)
	n := len(actionsOne)

	var actionsTwo []Action
	if players == 2 {
		actionsTwo = actionProfile(rng, long)
	} else {
		actionsTwo = repeatAction(ActionNone, n)
	}

	var positionsOne, positionsTwo []Quadrant
	if players == 2 {
		half := n / 2
		positionsOne = walk(rng, []Quadrant{playerOneStart}, half)
		positionsTwo = walk(rng, []Quadrant{playerTwoStart}, half)

		positionsOne = append(positionsOne, playerOneDisconnect...)
		positionsTwo = append(positionsTwo, playerTwoDisconnect...)

		rest := n - half
		positionsOne = walk(rng, positionsOne, rest)
		positionsTwo = walk(rng, positionsTwo, rest)

		positionsOne[n-3] = QuadrantDisconnected
		positionsTwo[n-3] = QuadrantDisconnected
	} else {
		positionsOne = repeatQuadrant(1, n)
		positionsOne[n-4] = QuadrantDisconnected
		positionsTwo = repeatQuadrant(1, n)
	}

	moves := make([]Move, n)
	for i := range moves {
		moves[i] = Move{
			Action1:   actionsOne[i],
			Position1: positionsOne[i],
			Action2:   actionsTwo[i],
			Position2: positionsTwo[i],
		}
	}
	return FromMoves(moves)
}

// actionProfile shuffles one of the two fixed templates and closes it with a
// logout slot.
func actionProfile(rng *rand.Rand, long bool) []Action {
	repeats := shortTemplateRepeats
	if long {
		repeats = longTemplateRepeats
	}
	profile := make([]Action, 0, repeats*len(combatActions)+1)
	for i := 0; i < repeats; i++ {
		profile = append(profile, combatActions...)
	}
	rng.Shuffle(len(profile), func(i, j int) {
		profile[i], profile[j] = profile[j], profile[i]
	})
	return append(profile, ActionLogout)
}

// walk appends steps quadrants to seq, each derived from the previous one.
func walk(rng *rand.Rand, seq []Quadrant, steps int) []Quadrant {
	prev := seq[len(seq)-1]
	for i := 0; i < steps; i++ {
		prev = nextQuadrant(prev, rng.Float64())
		seq = append(seq, prev)
	}
	return seq
}

// nextQuadrant applies the wraparound transition rule for a uniform draw r.
func nextQuadrant(prev Quadrant, r float64) Quadrant {
	next := prev
	switch {
	case r < stepForwardProbability:
		next = prev + 1
	case r < stepForwardProbability+stepBackwardProbability:
		next = prev + 3
	}
	next %= 4
	if next == 0 {
		next = 4
	}
	return next
}

func repeatAction(action Action, n int) []Action {
	out := make([]Action, n)
	for i := range out {
		out[i] = action
	}
	return out
}

func repeatQuadrant(q Quadrant, n int) []Quadrant {
	out := make([]Quadrant, n)
	for i := range out {
		out[i] = q
	}
	return out
}
