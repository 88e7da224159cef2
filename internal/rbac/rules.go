package rbac

// Permissions checked by the session routes.
const (
	PermSessionStart   = "session:start"
	PermSessionAnswer  = "session:answer"
	PermSessionViewOwn = "session:view-own"
	PermSessionViewAll = "session:view-all"
	PermSessionAbort   = "session:abort"
	PermItemsImport    = "items:import"
)

// RolePermissions is the default policy. Students act on their own
// sessions; proctors may watch and abort anyone's.
var RolePermissions = map[string][]string{
	"student": {
		PermSessionStart,
		PermSessionAnswer,
		PermSessionViewOwn,
	},
	"proctor": {
		PermSessionStart,
		PermSessionViewAll,
		PermSessionAbort,
		PermItemsImport,
	},
	"admin": {
		"*", // everything
	},
}
