// Package approval classifies task types that need a human approval flag
// before they may start.
package approval

var destructiveTypes = map[string]struct{}{
	"delete_resource":     {},
	"drop_database":       {},
	"terminate_server":    {},
	"revoke_access":       {},
	"cancel_subscription": {},
}

func IsDestructive(taskType string) bool {
	_, ok := destructiveTypes[taskType]
	return ok
}
