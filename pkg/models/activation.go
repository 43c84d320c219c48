package models

// Activation carries everything a single control press needs to run the
// activation protocol: which asset variant was pressed and who pressed it.
type Activation struct {
	Asset       string `json:"asset"`
	ActorName   string `json:"actor_name"`
	ActorAvatar string `json:"actor_avatar,omitempty"`
}

// ScopeStats is the display payload for one stat scope: all-time counts and
// per-hour rates keyed by counter name.
type ScopeStats struct {
	Counts map[string]int64   `json:"counts"`
	Rates  map[string]float64 `json:"rates"`
}
