package combat

import "github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"

// State holds the authoritative combat state of both players.
type State struct {
	players [2]PlayerState
}

// NewState returns two freshly spawned players.
func NewState() *State {
	return &State{players: [2]PlayerState{NewPlayerState(), NewPlayerState()}}
}

// Player returns the state of player 1 or 2, or nil for any other id.
func (s *State) Player(id int) *PlayerState {
	if id < 1 || id > len(s.players) {
		return nil
	}
	return &s.players[id-1]
}

// CanSee reports whether players in quadrants a and b see each other. The
// blind quadrant hides its occupant from everyone outside it.
func CanSee(a, b scenario.Quadrant) bool {
	return (a == scenario.QuadrantBlind) == (b == scenario.QuadrantBlind)
}

// Apply performs action for actorID against the other player. Positions are
// the quadrants of the actor and the opponent for the current round. Teams
// without a visualizer have no fire and treat bombs and AI abilities as
// always visible.
func (s *State) Apply(actorID int, action scenario.Action, actorQuadrant, opponentQuadrant scenario.Quadrant, hasVisualizer bool) {
	actor := s.Player(actorID)
	if actor == nil {
		return
	}
	opponent := s.Player(3 - actorID)

	if hasVisualizer {
		actor.burn(opponent, opponentQuadrant)
	}

	visible := CanSee(actorQuadrant, opponentQuadrant)
	if !hasVisualizer && (action == scenario.ActionBomb || action.IsAI()) {
		visible = true
	}

	switch {
	case action == scenario.ActionShoot:
		actor.shoot(opponent, visible)
	case action == scenario.ActionShield:
		actor.shield()
	case action == scenario.ActionReload:
		actor.reload()
	case action == scenario.ActionBomb:
		actor.bomb(opponent, opponentQuadrant, visible)
	case action.IsAI():
		actor.ability(opponent, visible)
	default:
		// logout, none and unrecognized actions leave the state untouched
	}
}

// PlayerSnapshot is the wire form of one player's state.
type PlayerSnapshot struct {
	HP       int `json:"hp" jsonschema:"required,minimum=0,maximum=100"`
	Bullets  int `json:"bullets" jsonschema:"required,minimum=0,maximum=6"`
	Bombs    int `json:"bombs" jsonschema:"required,minimum=0,maximum=2"`
	ShieldHP int `json:"shield_hp" jsonschema:"required,minimum=0,maximum=30"`
	Deaths   int `json:"deaths" jsonschema:"required,minimum=0"`
	Shields  int `json:"shields" jsonschema:"required,minimum=0,maximum=3"`
}

// Snapshot is the authoritative state sent back to the client each round.
type Snapshot struct {
	P1 PlayerSnapshot `json:"p1" jsonschema:"required"`
	P2 PlayerSnapshot `json:"p2" jsonschema:"required"`
}

func (p *PlayerState) snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		HP:       p.HP,
		Bullets:  p.Bullets,
		Bombs:    p.Bombs,
		ShieldHP: p.ShieldHP,
		Deaths:   p.Deaths,
		Shields:  p.Shields,
	}
}

// Snapshot copies the current state into its wire form.
func (s *State) Snapshot() Snapshot {
	return Snapshot{P1: s.players[0].snapshot(), P2: s.players[1].snapshot()}
}
