package models

// Cache refresh lifecycle states.
const (
	CacheStatusIdle     = "idle"
	CacheStatusLoading  = "loading"
	CacheStatusComplete = "complete"
	CacheStatusError    = "error"
)

// CacheProgress is a point-in-time snapshot of an in-flight cache refresh.
// It is owned by the synchronizer and copied out to pollers; it is never
// persisted across restarts.
type CacheProgress struct {
	Status         string `json:"status"`
	CurrentStep    string `json:"current_step"`
	StepsCompleted int    `json:"steps_completed"`
	TotalSteps     int    `json:"total_steps"`
	Message        string `json:"message"`
}

// Terminal reports whether the refresh has finished, successfully or not.
func (p CacheProgress) Terminal() bool {
	return p.Status == CacheStatusComplete || p.Status == CacheStatusError
}
