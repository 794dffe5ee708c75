package enums

import "fmt"

// ActorRole identifies who triggers an order transition.
type ActorRole string

const (
	ActorBuyer  ActorRole = "buyer"
	ActorSeller ActorRole = "seller"
	ActorAdmin  ActorRole = "admin"
	ActorSystem ActorRole = "system"
)

var validActorRoles = []ActorRole{ActorBuyer, ActorSeller, ActorAdmin, ActorSystem}

func (r ActorRole) String() string {
	return string(r)
}

func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
