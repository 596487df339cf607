package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "owner manage", role: RoleOwner, action: ActionManage, allow: true},
		{name: "owner write", role: RoleOwner, action: ActionWrite, allow: true},
		{name: "member read", role: RoleMember, action: ActionRead, allow: true},
		{name: "member write", role: RoleMember, action: ActionWrite, allow: true},
		{name: "member manage", role: RoleMember, action: ActionManage, allow: false},
		{name: "none read", role: RoleNone, action: ActionRead, allow: false},
		{name: "unknown write", role: Role("admin"), action: ActionWrite, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestRoleFor(t *testing.T) {
	members := []string{"user-2", "user-3"}
	cases := []struct {
		name  string
		actor string
		want  Role
	}{
		{name: "owner", actor: "user-1", want: RoleOwner},
		{name: "member", actor: "user-3", want: RoleMember},
		{name: "stranger", actor: "user-9", want: RoleNone},
		{name: "anonymous", actor: "", want: RoleNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleFor(tc.actor, "user-1", members); got != tc.want {
				t.Fatalf("RoleFor(%q) = %q, want %q", tc.actor, got, tc.want)
			}
		})
	}
}

func TestRoleForOwnerListedAsMember(t *testing.T) {
	if got := RoleFor("user-1", "user-1", []string{"user-1"}); got != RoleOwner {
		t.Fatalf("RoleFor() = %q, want owner", got)
	}
}
