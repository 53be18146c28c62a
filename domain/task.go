package domain

// Per-recipient task statuses. Each recipient id lives in exactly one of the
// three maps at any time; the key union is fixed when the task is created.
const (
	StatusIncomplete = "incomplete"
	StatusPending    = "pending"
	StatusComplete   = "complete"
)

// Review actions applied by the task author.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionDeny    = "deny"
)

// Task tracks a piece of work dispatched to a set of recipients. The map
// values carry the recipient's (or reviewer's) latest free-text note.
type Task struct {
	ID                 string            `json:"id"`
	FromUser           string            `json:"fromUser"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Suspense           int64             `json:"suspense"`
	AutoAcceptRequests bool              `json:"autoAcceptRequests"`
	Reminders          []int64           `json:"reminders,omitempty"`
	Incomplete         map[string]string `json:"incomplete"`
	Pending            map[string]string `json:"pending"`
	Complete           map[string]string `json:"complete"`
}

// StatusOf reports the recipient's current status, or false when the user is
// not a recipient of this task at all.
func (t *Task) StatusOf(userID string) (string, bool) {
	if _, ok := t.Incomplete[userID]; ok {
		return StatusIncomplete, true
	}
	if _, ok := t.Pending[userID]; ok {
		return StatusPending, true
	}
	if _, ok := t.Complete[userID]; ok {
		return StatusComplete, true
	}
	return "", false
}

// Recipients returns every recipient id across the three status maps.
func (t *Task) Recipients() []string {
	out := make([]string, 0, len(t.Incomplete)+len(t.Pending)+len(t.Complete))
	for id := range t.Incomplete {
		out = append(out, id)
	}
	for id := range t.Pending {
		out = append(out, id)
	}
	for id := range t.Complete {
		out = append(out, id)
	}
	return out
}
