package enums

import "fmt"

// Role represents a platform-wide principal role.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleCreator  Role = "creator"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{
	RoleConsumer,
	RoleCreator,
	RoleAdmin,
}

// roleRanks defines the strict total order consumer < creator < admin.
var roleRanks = map[Role]int{
	RoleConsumer: 0,
	RoleCreator:  1,
	RoleAdmin:    2,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the numeric position of the role in the hierarchy.
// Unknown roles rank below every valid role.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether the role sits at or above the given role.
func (r Role) AtLeast(other Role) bool {
	return r.IsValid() && other.IsValid() && r.Rank() >= other.Rank()
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
