package scenario

import "fmt"

// Quadrant is one of the four spatial zones. Zero is the generator's
// disconnect marker and never a live combat position.
type Quadrant int

const (
	QuadrantDisconnected Quadrant = 0
	// QuadrantBlind is the zone that cannot see, or be seen from, the others.
	QuadrantBlind Quadrant = 4
)

// Move is the expected action and position of both players for one round.
type Move struct {
	Action1   Action
	Position1 Quadrant
	Action2   Action
	Position2 Quadrant
}

func (m Move) String() string {
	return fmt.Sprintf("p1:%d,%s; p2:%d,%s", m.Position1, m.Action1, m.Position2, m.Action2)
}

// Scenario is the immutable move sequence of a session plus its cursor.
type Scenario struct {
	moves      []Move
	gunActions int
	aiActions  int
	index      int
}

// FromMoves wraps a pre-built move sequence. Gun slots count towards the gun
// total and every other slot of an active player towards the AI total.
func FromMoves(moves []Move) *Scenario {
	s := &Scenario{moves: append([]Move(nil), moves...)}
	for _, move := range s.moves {
		s.count(move.Action1)
		s.count(move.Action2)
	}
	return s
}

func (s *Scenario) count(action Action) {
	switch action {
	case ActionNone, ActionUnknown:
	case ActionShoot:
		s.gunActions++
	default:
		s.aiActions++
	}
}

// Len returns the number of rounds.
func (s *Scenario) Len() int {
	return len(s.moves)
}

// Index returns the cursor position.
func (s *Scenario) Index() int {
	return s.index
}

// Moves returns a copy of the full sequence.
func (s *Scenario) Moves() []Move {
	return append([]Move(nil), s.moves...)
}

// Current returns the move under the cursor.
func (s *Scenario) Current() Move {
	if len(s.moves) == 0 {
		return Move{}
	}
	return s.moves[s.index]
}

// Label renders the one-based round counter shown to the viewer.
func (s *Scenario) Label() string {
	return fmt.Sprintf("%d / %d", s.index+1, len(s.moves))
}

// Positions returns the quadrants both players are expected to occupy.
func (s *Scenario) Positions() (Quadrant, Quadrant) {
	move := s.Current()
	return move.Position1, move.Position2
}

// Actions returns the actions both players are expected to perform.
func (s *Scenario) Actions() (Action, Action) {
	move := s.Current()
	return move.Action1, move.Action2
}

// ExpectedAction returns the action player playerID should perform this round.
func (s *Scenario) ExpectedAction(playerID int) Action {
	move := s.Current()
	if playerID == 1 {
		return move.Action1
	}
	return move.Action2
}

// Advance moves the cursor to the next round. It returns false, leaving the
// cursor on the last move, once the sequence is exhausted.
func (s *Scenario) Advance() bool {
	if s.index+1 >= len(s.moves) {
		return false
	}
	s.index++
	return true
}

// GunActions is the scoring denominator for gun actions.
func (s *Scenario) GunActions() int {
	return s.gunActions
}

// AIActions is the scoring denominator for every other action.
func (s *Scenario) AIActions() int {
	return s.aiActions
}
