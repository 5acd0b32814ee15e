package scenario

// Action is the closed set of moves a player can be asked to perform.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionNone
	ActionShoot
	ActionShield
	ActionBomb
	ActionReload
	ActionIronMan
	ActionHulk
	ActionCaptAmerica
	ActionShangChi
	ActionLogout
)

var actionNames = [...]string{
	ActionUnknown:     "unknown",
	ActionNone:        "none",
	ActionShoot:       "gun",
	ActionShield:      "shield",
	ActionBomb:        "bomb",
	ActionReload:      "reload",
	ActionIronMan:     "ironMan",
	ActionHulk:        "hulk",
	ActionCaptAmerica: "captAmerica",
	ActionShangChi:    "shangChi",
	ActionLogout:      "logout",
}

// combatActions is the base profile every template is built from.
var combatActions = []Action{
	ActionShoot,
	ActionShield,
	ActionBomb,
	ActionReload,
	ActionIronMan,
	ActionHulk,
	ActionCaptAmerica,
	ActionShangChi,
}

// String returns the wire name of the action.
func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return actionNames[ActionUnknown]
}

// IsAI reports whether the action is one of the four AI abilities. They share
// one behaviour in the combat engine.
func (a Action) IsAI() bool {
	switch a {
	case ActionIronMan, ActionHulk, ActionCaptAmerica, ActionShangChi:
		return true
	default:
		return false
	}
}

// ParseAction maps a wire name onto an Action. Unrecognized names yield
// ActionUnknown, which never matches a scenario slot.
func ParseAction(name string) Action {
	for i, candidate := range actionNames {
		if Action(i) == ActionUnknown {
			continue
		}
		if candidate == name {
			return Action(i)
		}
	}
	return ActionUnknown
}
