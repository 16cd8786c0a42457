package rbac

// Role names. Keep these stable; they are part of the token contract.
const (
	// RoleOwner is the operator account: dashboard, inspection, integrations.
	RoleOwner = "owner"
	// RoleViewer may read the dashboard only.
	RoleViewer = "viewer"
)

func IsKnownRole(role string) bool {
	return role == RoleOwner || role == RoleViewer
}
