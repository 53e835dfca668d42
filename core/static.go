package core

// IsStaticallyComputable reports whether the expression can be
// evaluated without unread input tokens, the action's local
// declarations, or the actor's state.
//
// A nil expression is computable.
func IsStaticallyComputable(e *Expr, act *Action, a *Actor) bool {
	for _, v := range e.FreeVars() {
		if act.BindsInput(v) || act.Declares(v) || a.HasState(v) {
			return false
		}
	}
	return true
}

// GuardsComputable reports whether every guard of the action is
// statically computable.
func GuardsComputable(act *Action, a *Actor) bool {
	for _, g := range act.guards {
		if !IsStaticallyComputable(g, act, a) {
			return false
		}
	}
	return true
}

// InputDependentGuard returns the first guard with a free variable
// bound by the action's input patterns (or nil).
func InputDependentGuard(act *Action) *Expr {
	for _, g := range act.guards {
		for _, v := range g.FreeVars() {
			if act.BindsInput(v) {
				return g
			}
		}
	}
	return nil
}
