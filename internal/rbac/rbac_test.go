package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role, perm string
		want       bool
	}{
		{RoleParticipant, PermClaimCampaign, true},
		{RoleParticipant, PermManageCampaign, false},
		{RoleSponsor, PermManageCampaign, true},
		{RoleSponsor, PermVerifySubmission, false},
		{RoleSponsor, PermResolvePayout, false},
		{RoleAdmin, PermResolvePayout, true},
		{RoleAdmin, PermRequestPayout, false},
		{"ghost", PermClaimCampaign, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIsFinancialOperation(t *testing.T) {
	if !IsFinancialOperation(PermRequestPayout) || !IsFinancialOperation(PermResolvePayout) {
		t.Error("payout permissions must be financial")
	}
	if IsFinancialOperation(PermClaimCampaign) {
		t.Error("claiming is not financial")
	}
}
