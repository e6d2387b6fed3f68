package models

// Hierarchy role codes. Entries missing from the hierarchy table fall back
// to RoleUser at level 0; that is a documented gap, not an error.
const (
	RoleAE   = "AE"
	RoleDM   = "DM"
	RoleRD   = "RD"
	RoleAVP  = "AVP"
	RoleGVP  = "GVP"
	RoleUser = "USER"
)

// HierarchyEntry is one row of the cached organizational hierarchy, keyed by
// normalized login name.
type HierarchyEntry struct {
	Username        string  `json:"username"`
	EmployeeID      *int64  `json:"employee_id"`
	DisplayName     string  `json:"display_name"`
	Title           *string `json:"title"`
	Role            string  `json:"role"`
	Theater         *string `json:"theater"`
	IndustrySegment *string `json:"industry_segment"`
	ManagerName     *string `json:"manager_name"`
	ApprovalLevel   int     `json:"approval_level"`
	IsFinalApprover bool    `json:"is_final_approver"`
}

// Identity is the already-resolved acting user attached to a request. The
// core trusts the identity string it is handed; authentication happens
// upstream.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Title       string `json:"title"`
	EmployeeID  *int64 `json:"employee_id"`
	ManagerName string `json:"manager_name"`
}

// DefaultIdentity builds the fallback identity for a login with no
// hierarchy entry.
func DefaultIdentity(username string) Identity {
	return Identity{
		Username:    username,
		DisplayName: username,
	}
}

// IdentityFromEntry projects a hierarchy entry onto the acting identity.
func IdentityFromEntry(e *HierarchyEntry) Identity {
	id := Identity{
		Username:    e.Username,
		DisplayName: e.DisplayName,
		EmployeeID:  e.EmployeeID,
	}
	if id.DisplayName == "" {
		id.DisplayName = e.Username
	}
	if e.Title != nil {
		id.Title = *e.Title
	}
	if e.ManagerName != nil {
		id.ManagerName = *e.ManagerName
	}
	return id
}
