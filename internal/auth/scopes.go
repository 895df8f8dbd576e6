package auth

// Scopes accepted by the DeskFit API.
const (
	// ScopeWorkoutsRead grants read access to profiles, exercises, activity,
	// achievements, and recommendations.
	ScopeWorkoutsRead = "workouts:read"
	// ScopeWorkoutsWrite grants permission to record workout completions.
	ScopeWorkoutsWrite = "workouts:write"
)
