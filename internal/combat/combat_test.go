package combat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"
)

func TestReduceHealthDrainsShieldFirst(t *testing.T) {
	for shield := 0; shield <= MaxShieldHP; shield += 5 {
		for damage := 0; damage <= 40; damage += 5 {
			p := NewPlayerState()
			p.ShieldHP = shield
			p.ReduceHealth(damage)

			wantShield := max(0, shield-damage)
			wantLoss := max(0, damage-shield)
			if p.ShieldHP != wantShield {
				t.Fatalf("shield=%d damage=%d: expected shield %d, got %d", shield, damage, wantShield, p.ShieldHP)
			}
			if MaxHP-p.HP != wantLoss {
				t.Fatalf("shield=%d damage=%d: expected hp loss %d, got %d", shield, damage, wantLoss, MaxHP-p.HP)
			}
		}
	}
}

func TestReduceHealthRespawnsAtomically(t *testing.T) {
	p := NewPlayerState()
	p.HP = 5
	p.Bullets = 0
	p.Bombs = 1
	p.Shields = 0
	p.Deaths = 2

	p.ReduceHealth(10)

	if p.Deaths != 3 {
		t.Fatalf("expected deaths to increase by one, got %d", p.Deaths)
	}
	if p.HP != MaxHP || p.Bullets != MaxBullets || p.Bombs != MaxBombs || p.ShieldHP != MaxShieldHP || p.Shields != MaxShields {
		t.Fatalf("expected every resource at its maximum after respawn, got %+v", p)
	}
}

func TestReduceHealthKeepsFiresAcrossRespawn(t *testing.T) {
	p := NewPlayerState()
	p.fires = []scenario.Quadrant{2}
	p.HP = 1
	p.ReduceHealth(BulletDamage)
	if len(p.Fires()) != 1 {
		t.Fatalf("expected fire markers to survive a respawn")
	}
}

func TestCanSeeIsSymmetric(t *testing.T) {
	for a := scenario.Quadrant(1); a <= 4; a++ {
		for b := scenario.Quadrant(1); b <= 4; b++ {
			if CanSee(a, b) != CanSee(b, a) {
				t.Fatalf("CanSee(%d,%d) differs from CanSee(%d,%d)", a, b, b, a)
			}
			hidden := (a == 4) != (b == 4)
			if CanSee(a, b) == hidden {
				t.Fatalf("CanSee(%d,%d) = %v, expected %v", a, b, CanSee(a, b), !hidden)
			}
		}
	}
}

func TestShootConsumesBulletAndDamagesVisibleOpponent(t *testing.T) {
	s := NewState()
	s.Apply(1, scenario.ActionShoot, 1, 3, true)

	if got := s.Player(1).Bullets; got != MaxBullets-1 {
		t.Fatalf("expected one bullet spent, got %d left", got)
	}
	if got := s.Player(2).HP; got != MaxHP-BulletDamage {
		t.Fatalf("expected opponent at %d hp, got %d", MaxHP-BulletDamage, got)
	}
}

func TestShootWithoutSightOrAmmo(t *testing.T) {
	s := NewState()
	s.Apply(1, scenario.ActionShoot, 1, 4, false)
	if s.Player(1).Bullets != MaxBullets-1 || s.Player(2).HP != MaxHP {
		t.Fatalf("expected hidden target to cost a bullet without damage")
	}

	s.Player(1).Bullets = 0
	s.Apply(1, scenario.ActionShoot, 1, 1, true)
	if s.Player(1).Bullets != 0 || s.Player(2).HP != MaxHP {
		t.Fatalf("expected empty magazine to be a no-op")
	}
}

func TestShieldAndReloadGuards(t *testing.T) {
	s := NewState()
	s.Apply(1, scenario.ActionShield, 1, 3, true)
	p := s.Player(1)
	if p.ShieldHP != MaxShieldHP || p.Shields != MaxShields-1 {
		t.Fatalf("expected shield raised, got %+v", *p)
	}
	s.Apply(1, scenario.ActionShield, 1, 3, true)
	if p.Shields != MaxShields-1 {
		t.Fatalf("expected active shield to block a second activation")
	}
	p.ShieldHP = 0
	p.Shields = 0
	s.Apply(1, scenario.ActionShield, 1, 3, true)
	if p.ShieldHP != 0 {
		t.Fatalf("expected no shield without charges")
	}

	p.Bullets = 2
	s.Apply(1, scenario.ActionReload, 1, 3, true)
	if p.Bullets != 2 {
		t.Fatalf("expected reload to wait for an empty magazine, got %d", p.Bullets)
	}
	p.Bullets = 0
	s.Apply(1, scenario.ActionReload, 1, 3, true)
	if p.Bullets != MaxBullets {
		t.Fatalf("expected reload to refill, got %d", p.Bullets)
	}
}

func TestBombPlantsFireThatBurnsOnLaterActions(t *testing.T) {
	s := NewState()
	s.Apply(1, scenario.ActionBomb, 1, 2, true)
	if got := s.Player(2).HP; got != MaxHP-BombDamage {
		t.Fatalf("expected bomb damage, got %d hp", got)
	}
	if fires := s.Player(1).Fires(); len(fires) != 1 || fires[0] != 2 {
		t.Fatalf("expected one fire at quadrant 2, got %v", fires)
	}

	s.Apply(1, scenario.ActionBomb, 1, 2, true)
	// one fire burned before the second bomb landed
	if got := s.Player(2).HP; got != MaxHP-2*BombDamage-FireDamage {
		t.Fatalf("expected bomb and fire damage, got %d hp", got)
	}

	s.Apply(1, scenario.ActionLogout, 1, 2, true)
	if got := s.Player(2).HP; got != MaxHP-2*BombDamage-3*FireDamage {
		t.Fatalf("expected two stacked fires to burn, got %d hp", got)
	}

	s.Apply(1, scenario.ActionLogout, 1, 3, true)
	if got := s.Player(2).HP; got != MaxHP-2*BombDamage-3*FireDamage {
		t.Fatalf("expected no burn outside the fire, got %d hp", got)
	}
}

func TestBombOutOfSightSpendsAmmoOnly(t *testing.T) {
	s := NewState()
	s.Apply(2, scenario.ActionBomb, 4, 1, true)
	if s.Player(2).Bombs != MaxBombs-1 {
		t.Fatalf("expected a bomb to be spent")
	}
	if s.Player(1).HP != MaxHP || len(s.Player(2).Fires()) != 0 {
		t.Fatalf("expected no damage and no fire for an unseen target")
	}
	s.Player(2).Bombs = 0
	s.Apply(2, scenario.ActionBomb, 1, 1, true)
	if s.Player(2).Bombs != 0 || s.Player(1).HP != MaxHP {
		t.Fatalf("expected an empty bomb bag to be a no-op")
	}
}

func TestNoVisualizerForcesSightAndSkipsFire(t *testing.T) {
	s := NewState()
	s.Player(1).fires = []scenario.Quadrant{4}

	s.Apply(1, scenario.ActionHulk, 1, 4, false)
	if got := s.Player(2).HP; got != MaxHP-AIDamage {
		t.Fatalf("expected forced sight without fire damage, got %d hp", got)
	}

	s.Apply(1, scenario.ActionShoot, 1, 4, false)
	if got := s.Player(2).HP; got != MaxHP-AIDamage {
		t.Fatalf("expected shooting to keep the quadrant rule, got %d hp", got)
	}

	s.Apply(1, scenario.ActionCaptAmerica, 1, 4, true)
	if got := s.Player(2).HP; got != MaxHP-AIDamage-FireDamage {
		t.Fatalf("expected visualizer teams to take fire but miss the hidden target, got %d hp", got)
	}
}

func TestResourcesNeverDropBelowZero(t *testing.T) {
	s := NewState()
	actions := []scenario.Action{scenario.ActionShoot, scenario.ActionBomb, scenario.ActionShield, scenario.ActionShangChi}
	for i := 0; i < 40; i++ {
		s.Apply(1, actions[i%len(actions)], 1, 2, true)
		p := s.Player(1)
		if p.Bullets < 0 || p.Bombs < 0 || p.Shields < 0 {
			t.Fatalf("resource dropped below zero: %+v", *p)
		}
		o := s.Player(2)
		if o.HP <= 0 || o.HP > MaxHP || o.ShieldHP < 0 || o.ShieldHP > MaxShieldHP {
			t.Fatalf("opponent out of range: %+v", *o)
		}
	}
}

func TestDiffIdentityAndDeltas(t *testing.T) {
	s := NewState()
	s.Apply(1, scenario.ActionShoot, 1, 3, true)

	diff, err := s.Diff(s.Snapshot().Reported())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Empty() {
		t.Fatalf("expected identical states to cancel, got %s", diff)
	}

	reported := NewState().Snapshot().Reported()
	diff, err = s.Diff(reported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.P1) != 1 || diff.P1[FieldBullets] != -1 {
		t.Fatalf("expected bullets delta -1 for p1, got %v", diff.P1)
	}
	if len(diff.P2) != 1 || diff.P2[FieldHP] != -BulletDamage {
		t.Fatalf("expected hp delta for p2, got %v", diff.P2)
	}
	if got := diff.String(); got != `{"p1":{"bullets":-1},"p2":{"hp":-5}}` {
		t.Fatalf("unexpected diff rendering %s", got)
	}
}

func reportedFromJSON(t *testing.T, text string) Reported {
	t.Helper()
	var reported Reported
	if err := json.Unmarshal([]byte(text), &reported); err != nil {
		t.Fatalf("decode reported state: %v", err)
	}
	return reported
}

func TestDiffReportsMissingField(t *testing.T) {
	s := NewState()
	full := `{"hp":100,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3}`

	cases := []string{
		`{"p1":` + full + `,"p2":{"hp":100,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0}}`,
		`{"p1":` + full + `}`,
		`{"p1":` + full + `,"p2":{"hp":null,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3}}`,
		`{"p1":` + full + `,"p2":{"hp":"100","bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3}}`,
		`{"p1":` + full + `,"p2":7}`,
	}
	for _, text := range cases {
		if _, err := s.Diff(reportedFromJSON(t, text)); !errors.Is(err, ErrMissingField) {
			t.Fatalf("%s: expected missing field error, got %v", text, err)
		}
	}
}

func TestDiffIgnoresExtraKeys(t *testing.T) {
	s := NewState()
	reported := reportedFromJSON(t, `{"round":3,"p1":{"name":"alice","hp":100,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3,"tags":["a"]},"p2":{"hp":100.0,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3}}`)
	diff, err := s.Diff(reported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Empty() {
		t.Fatalf("expected extra keys to be ignored, got %s", diff)
	}
}

func TestDiffKeepsFractionalDeltas(t *testing.T) {
	s := NewState()
	reported := reportedFromJSON(t, `{"p1":{"hp":99.5,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3},"p2":{"hp":100,"bullets":6,"bombs":2,"shield_hp":0,"deaths":0,"shields":3}}`)
	diff, err := s.Diff(reported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff.Empty() || diff.P1[FieldHP] != 0.5 {
		t.Fatalf("expected hp delta 0.5 for p1, got %s", diff)
	}
	if got := diff.String(); got != `{"p1":{"hp":0.5},"p2":{}}` {
		t.Fatalf("unexpected diff rendering %s", got)
	}
}
