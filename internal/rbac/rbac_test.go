package rbac_test

import (
	"testing"

	"safeline/internal/domain"
	"safeline/internal/rbac"
)

func TestDefaultMatrix(t *testing.T) {
	table := rbac.Default()
	cases := []struct {
		role   domain.Role
		module rbac.Module
		action rbac.Action
		want   bool
	}{
		{domain.RoleCompanyOwner, rbac.ModuleObservations, rbac.ActionDelete, true},
		{domain.RoleCompanyOwner, rbac.ModuleReports, rbac.ActionManage, true},
		{domain.RolePlantHead, rbac.ModuleObservations, rbac.ActionApprove, true},
		{domain.RolePlantHead, rbac.ModuleObservations, rbac.ActionDelete, false},
		{domain.RoleSafetyIncharge, rbac.ModuleObservations, rbac.ActionReview, true},
		{domain.RoleSafetyIncharge, rbac.ModuleActions, rbac.ActionDelete, false},
		{domain.RoleHOD, rbac.ModuleObservations, rbac.ActionReview, true},
		{domain.RoleHOD, rbac.ModuleObservations, rbac.ActionApprove, false},
		{domain.RoleHOD, rbac.ModuleActions, rbac.ActionEdit, true},
		{domain.RoleWorker, rbac.ModuleObservations, rbac.ActionCreate, true},
		{domain.RoleWorker, rbac.ModuleObservations, rbac.ActionReview, false},
		{domain.RoleWorker, rbac.ModuleObservations, rbac.ActionApprove, false},
		{domain.RoleContractor, rbac.ModuleActions, rbac.ActionEdit, true},
		{domain.RoleContractor, rbac.ModuleReports, rbac.ActionCreate, false},
	}
	for _, tc := range cases {
		got := table.Can(tc.role, tc.module, tc.action)
		if got != tc.want {
			t.Errorf("Can(%s, %s, %s) = %v, want %v", tc.role, tc.module, tc.action, got, tc.want)
		}
	}
}

func TestUnknownRoleDeniesEverything(t *testing.T) {
	table := rbac.Default()
	if table.Can(domain.Role("intern"), rbac.ModuleObservations, rbac.ActionCreate) {
		t.Fatalf("unknown role must hold no capabilities")
	}
	if caps := table.Capabilities(domain.Role("intern")); caps != nil {
		t.Fatalf("expected nil capability set, got %v", caps)
	}
}
