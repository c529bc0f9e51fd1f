package delegate

// Result is the outcome of one delegation. Exactly one of Err or the
// Response/SessionID pair is meaningful.
type Result struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Err       *Error `json:"-"`
}

// OK reports whether the delegation succeeded.
func (r Result) OK() bool { return r.Err == nil }
