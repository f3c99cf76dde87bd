package policy

import (
	"context"
	"testing"

	"github.com/taskora/taskora/internal/auth"
	"github.com/taskora/taskora/internal/membership"
)

var (
	admin     = &auth.Actor{ID: "a1", IsAdmin: true}
	plainUser = &auth.Actor{ID: "u1"}
)

func TestAllowed_ProjectActions(t *testing.T) {
	actions := []Action{ProjectCreate, ProjectUpdate, ProjectDelete}
	roles := []membership.Role{membership.RoleManager, membership.RoleDeveloper, membership.RoleTester, ""}

	for _, action := range actions {
		for _, role := range roles {
			if Allowed(plainUser, action, role) {
				t.Errorf("%s: non-admin with role %q should be denied", action, role)
			}
			if !Allowed(admin, action, role) {
				t.Errorf("%s: admin should be allowed regardless of role %q", action, role)
			}
		}
	}
}

func TestAllowed_TaskActions(t *testing.T) {
	tests := []struct {
		name   string
		actor  *auth.Actor
		action Action
		role   membership.Role
		want   bool
	}{
		{"manager creates task", plainUser, TaskCreate, membership.RoleManager, true},
		{"admin creates task without membership", admin, TaskCreate, "", true},
		{"developer cannot create task", plainUser, TaskCreate, membership.RoleDeveloper, false},
		{"tester cannot create task", plainUser, TaskCreate, membership.RoleTester, false},

		{"manager edits task", plainUser, TaskEdit, membership.RoleManager, true},
		{"admin edits task", admin, TaskEdit, "", true},
		{"developer cannot edit task", plainUser, TaskEdit, membership.RoleDeveloper, false},

		{"developer updates status", plainUser, TaskUpdateStatus, membership.RoleDeveloper, true},
		{"tester cannot update status", plainUser, TaskUpdateStatus, membership.RoleTester, false},
		{"manager cannot update status", plainUser, TaskUpdateStatus, membership.RoleManager, false},
		// No admin override for status updates.
		{"admin without developer role cannot update status", admin, TaskUpdateStatus, "", false},
		{"admin with manager role cannot update status", admin, TaskUpdateStatus, membership.RoleManager, false},

		{"tester adds note", plainUser, TaskAddNote, membership.RoleTester, true},
		{"developer cannot add note", plainUser, TaskAddNote, membership.RoleDeveloper, false},
		{"admin without tester role cannot add note", admin, TaskAddNote, "", false},

		{"manager deletes task", plainUser, TaskDelete, membership.RoleManager, true},
		{"admin deletes task", admin, TaskDelete, "", true},
		{"developer cannot delete task", plainUser, TaskDelete, membership.RoleDeveloper, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.actor, tt.action, tt.role); got != tt.want {
				t.Errorf("Allowed(%v, %s, %q) = %v, want %v", tt.actor, tt.action, tt.role, got, tt.want)
			}
		})
	}
}

func TestAllowed_SessionActions(t *testing.T) {
	for _, role := range []membership.Role{membership.RoleManager, membership.RoleDeveloper, membership.RoleTester} {
		if !Allowed(plainUser, SessionLogin, role) {
			t.Errorf("member with role %q should be able to log in", role)
		}
		if !Allowed(plainUser, SessionLogout, role) {
			t.Errorf("member with role %q should be able to log out", role)
		}
	}
	if Allowed(plainUser, SessionLogin, "") {
		t.Error("non-member should not be able to log in to a project session")
	}
	if Allowed(admin, SessionLogin, "") {
		t.Error("admin without membership should not have a project session")
	}
}

func TestAllowed_UserAndMemberAdmin(t *testing.T) {
	for _, action := range []Action{UserDelete, MemberAdd, MemberRemove} {
		if Allowed(plainUser, action, membership.RoleManager) {
			t.Errorf("%s: non-admin manager should be denied", action)
		}
		if !Allowed(admin, action, "") {
			t.Errorf("%s: admin should be allowed", action)
		}
	}
}

func TestAllowed_NilActor(t *testing.T) {
	if Allowed(nil, ProjectView, membership.RoleManager) {
		t.Error("nil actor should always be denied")
	}
}

// --- Checker ---

type stubRoleFinder struct {
	roles  map[string]membership.Role // key: projectID + "/" + userID
	called int
}

func (s *stubRoleFinder) FindRole(ctx context.Context, projectID, userID string) (membership.Role, bool, error) {
	s.called++
	role, ok := s.roles[projectID+"/"+userID]
	return role, ok, nil
}

func TestChecker_CanPerform(t *testing.T) {
	finder := &stubRoleFinder{roles: map[string]membership.Role{
		"p1/u1": membership.RoleDeveloper,
	}}
	checker := NewChecker(finder)
	ctx := context.Background()

	ok, err := checker.CanPerform(ctx, plainUser, TaskUpdateStatus, "p1")
	if err != nil {
		t.Fatalf("CanPerform error: %v", err)
	}
	if !ok {
		t.Error("developer should be allowed to update status")
	}

	ok, err = checker.CanPerform(ctx, plainUser, TaskUpdateStatus, "p2")
	if err != nil {
		t.Fatalf("CanPerform error: %v", err)
	}
	if ok {
		t.Error("non-member should be denied")
	}
}

func TestChecker_AdminActionsSkipLedger(t *testing.T) {
	finder := &stubRoleFinder{roles: map[string]membership.Role{}}
	checker := NewChecker(finder)

	ok, err := checker.CanPerform(context.Background(), admin, ProjectDelete, "p1")
	if err != nil {
		t.Fatalf("CanPerform error: %v", err)
	}
	if !ok {
		t.Error("admin should be allowed to delete projects")
	}
	if finder.called != 0 {
		t.Errorf("admin-only action should not hit the ledger, got %d lookups", finder.called)
	}
}
