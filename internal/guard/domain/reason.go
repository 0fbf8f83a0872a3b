package domain

// Reason records why a navigation was blocked. It is informational only and
// never changes the allow/deny outcome.
type Reason string

const (
	ReasonNone Reason = ""
	// ReasonUserDenied: the user chose the negative prompt action.
	ReasonUserDenied Reason = "user_denied"
	// ReasonNotificationClosed: the user dismissed the prompt.
	ReasonNotificationClosed Reason = "notification_closed"
	// ReasonTimeout: nobody answered within the prompt window.
	ReasonTimeout Reason = "timeout"
	// ReasonSuspicious: the destination is on the suspicious list.
	ReasonSuspicious Reason = "suspicious"
	// ReasonPromptUnavailable: the prompt surface could not be shown.
	ReasonPromptUnavailable Reason = "prompt_unavailable"
	// ReasonCanceled: the waiting caller went away before any answer.
	ReasonCanceled Reason = "canceled"
)

func (r Reason) String() string { return string(r) }

// Decision is the settled answer for one prompt.
type Decision struct {
	Allow  bool
	Reason Reason
}

// Allowed returns an allowing decision.
func Allowed() Decision { return Decision{Allow: true} }

// Denied returns a denying decision tagged with reason.
func Denied(reason Reason) Decision { return Decision{Allow: false, Reason: reason} }
