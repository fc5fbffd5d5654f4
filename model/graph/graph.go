// api/model/graph/graph.go
package permsync_graph

// Node Labels
const (
	// LabelAccount represents a provider account covered by a template scope
	LabelAccount = "Account"

	// LabelPermissionSet represents a managed permission set
	LabelPermissionSet = "PermissionSet"

	// LabelPrincipal represents a user or group granted access
	LabelPrincipal = "Principal"

	// LabelOrg represents the organization an account belongs to
	LabelOrg = "Org"
)

// Relationship Types
const (
	// RelBelongsTo represents the relationship between an account and its org
	RelBelongsTo = "BELONGS_TO"

	// RelAssignedOn represents a permission set assigned on an account
	RelAssignedOn = "ASSIGNED_ON"

	// RelGrantedTo represents a permission set granted to a principal
	RelGrantedTo = "GRANTED_TO"
)
