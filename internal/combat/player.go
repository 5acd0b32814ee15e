package combat

import "github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"

// Resource ceilings and damage values of the simulated game.
const (
	MaxHP       = 100
	MaxBullets  = 6
	MaxBombs    = 2
	MaxShieldHP = 30
	MaxShields  = 3

	BulletDamage = 5
	BombDamage   = 5
	FireDamage   = 5
	AIDamage     = 10
)

// PlayerState is the authoritative combat state of one player.
type PlayerState struct {
	HP       int
	Bullets  int
	Bombs    int
	ShieldHP int
	Shields  int
	Deaths   int

	// fires lists the quadrants where this player's bombs started a fire.
	// Entries are never removed; repeats stack.
	fires []scenario.Quadrant
}

// NewPlayerState returns a freshly spawned player.
func NewPlayerState() PlayerState {
	return PlayerState{
		HP:      MaxHP,
		Bullets: MaxBullets,
		Bombs:   MaxBombs,
		Shields: MaxShields,
	}
}

// Fires returns a copy of the fire markers planted by the player.
func (p *PlayerState) Fires() []scenario.Quadrant {
	return append([]scenario.Quadrant(nil), p.fires...)
}

// ReduceHealth applies damage, draining the shield first. A player reduced to
// zero hp respawns inside the same call, so a dead state is never observable.
func (p *PlayerState) ReduceHealth(amount int) {
	if amount <= 0 {
		return
	}
	absorbed := min(p.ShieldHP, amount)
	p.ShieldHP -= absorbed
	p.HP = max(0, p.HP-(amount-absorbed))
	if p.HP > 0 {
		return
	}
	p.Deaths++
	p.HP = MaxHP
	p.Bullets = MaxBullets
	p.Bombs = MaxBombs
	p.ShieldHP = MaxShieldHP
	p.Shields = MaxShields
}

func (p *PlayerState) shoot(opponent *PlayerState, visible bool) {
	if p.Bullets <= 0 {
		return
	}
	p.Bullets--
	if !visible {
		return
	}
	opponent.ReduceHealth(BulletDamage)
}

func (p *PlayerState) shield() {
	if p.Shields <= 0 || p.ShieldHP > 0 {
		return
	}
	p.ShieldHP = MaxShieldHP
	p.Shields--
}

func (p *PlayerState) reload() {
	if p.Bullets > 0 {
		return
	}
	p.Bullets = MaxBullets
}

// bomb spends a bomb even when the opponent is out of sight; only a visible
// hit deals damage and leaves a fire behind.
func (p *PlayerState) bomb(opponent *PlayerState, opponentQuadrant scenario.Quadrant, visible bool) {
	if p.Bombs <= 0 {
		return
	}
	p.Bombs--
	if !visible {
		return
	}
	opponent.ReduceHealth(BombDamage)
	p.fires = append(p.fires, opponentQuadrant)
}

func (p *PlayerState) ability(opponent *PlayerState, visible bool) {
	if !visible {
		return
	}
	opponent.ReduceHealth(AIDamage)
}

// burn deals fire damage once per marker p planted in the opponent's quadrant.
func (p *PlayerState) burn(opponent *PlayerState, opponentQuadrant scenario.Quadrant) {
	for _, q := range p.fires {
		if q == opponentQuadrant {
			opponent.ReduceHealth(FireDamage)
		}
	}
}
