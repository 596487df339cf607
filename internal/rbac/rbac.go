package rbac

type Role string
type Action string

const (
	RoleNone   Role = ""
	RoleMember Role = "member"
	RoleOwner  Role = "owner"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleMember:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

// RoleFor resolves the role an actor holds on a board. Ownership wins over
// membership; an empty actor never holds a role.
func RoleFor(actor, ownerID string, memberIDs []string) Role {
	if actor == "" {
		return RoleNone
	}
	if actor == ownerID {
		return RoleOwner
	}
	for _, id := range memberIDs {
		if id == actor {
			return RoleMember
		}
	}
	return RoleNone
}
