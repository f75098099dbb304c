package players

import "time"

type Role string

const (
	RoleNone     = Role("")
	RoleImposter = Role("imposter")
	RoleCrewmate = Role("crewmate")
)

type Player struct {
	ID          string
	Name        string
	Color       string
	Role        Role
	HasSeenRole bool
	Connected   bool
	JoinedAt    time.Time
}
