package constant

// Session pipeline statuses, in pipeline order.
const (
	SessionStatusRequirements = "requirements"
	SessionStatusDesign       = "design"
	SessionStatusFeatures     = "features"
	SessionStatusWorkflow     = "workflow"
)

// Message roles persisted in the session history.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// AllowedStatusTransitions lists the legal successor statuses per status.
// Arbitrary jumps are rejected; a one-step rollback is allowed so a user can
// revisit the previous pipeline stage.
var AllowedStatusTransitions = map[string][]string{
	SessionStatusRequirements: {SessionStatusDesign},
	SessionStatusDesign:       {SessionStatusFeatures, SessionStatusRequirements},
	SessionStatusFeatures:     {SessionStatusWorkflow, SessionStatusDesign},
	SessionStatusWorkflow:     {SessionStatusFeatures},
}

// IsValidStatusTransition reports whether moving from -> to is permitted.
func IsValidStatusTransition(from, to string) bool {
	for _, next := range AllowedStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsKnownStatus reports whether s names a pipeline stage at all.
func IsKnownStatus(s string) bool {
	switch s {
	case SessionStatusRequirements, SessionStatusDesign, SessionStatusFeatures, SessionStatusWorkflow:
		return true
	}
	return false
}
