package rbac

// Simple default policy. Expand as needed.
// Ownership (submission owner, quiz author) is checked by the service;
// these gate which routes a role may reach at all.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"submission:create",
		"submission:save",
		"submission:grade",
		"submission:view",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"submission:grade",
		"submission:regrade",
		"submission:view",
		"review:view",
	},
	"admin": {
		"*", // everything
	},
}
