package constants

const (
	ViewLedger      = "view_ledger"
	IssueShares     = "issue_shares"
	ReleaseHoldings = "release_holdings"
	RequestTransfer = "request_transfer"
	ReviewTransfer  = "review_transfer"
	ExecuteTransfer = "execute_transfer"
	ViewAuditLog    = "view_audit_log"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
// Execution and release move shares, so they stay with admins.
var PermissionRoles = map[string][]string{
	ViewLedger:      {Viewer, Manager, Admin, Superadmin},
	IssueShares:     {Admin, Superadmin},
	ReleaseHoldings: {Admin, Superadmin},
	RequestTransfer: {Manager, Admin, Superadmin},
	ReviewTransfer:  {Admin, Superadmin},
	ExecuteTransfer: {Admin, Superadmin},
	ViewAuditLog:    {Admin, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	for _, r := range PermissionRoles[permission] {
		if r == role {
			return true
		}
	}
	return false
}
