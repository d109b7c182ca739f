package rbac

// Role constants
const (
	RoleParticipant = "participant"
	RoleSponsor     = "sponsor"
	RoleAdmin       = "admin"
)

// Permission constants
const (
	PermClaimCampaign    = "claim_campaign"
	PermReportMetrics    = "report_metrics"
	PermRequestPayout    = "request_payout"
	PermManageCampaign   = "manage_campaign"
	PermViewSubmissions  = "view_submissions"
	PermVerifySubmission = "verify_submission"
	PermResolvePayout    = "resolve_payout"
	PermManageSponsors   = "manage_sponsors"
	PermManageStanding   = "manage_standing"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleParticipant: {
		PermClaimCampaign, PermReportMetrics, PermRequestPayout,
	},
	RoleSponsor: {
		PermManageCampaign, PermViewSubmissions,
		// Sponsors CANNOT: PermVerifySubmission, PermResolvePayout
	},
	RoleAdmin: {
		PermManageCampaign, PermViewSubmissions, PermVerifySubmission,
		PermResolvePayout, PermManageSponsors, PermManageStanding,
	},
}

func IsValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation reports whether a permission moves money.
func IsFinancialOperation(permission string) bool {
	return permission == PermRequestPayout || permission == PermResolvePayout
}
