package post

// FailureKind classifies why a generation failed. It is for logs and
// metrics; callers only ever see the sanitised message.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureTimeout     FailureKind = "timeout"
	FailureCanceled    FailureKind = "canceled"
	FailureNetwork     FailureKind = "network"
	FailureAuth        FailureKind = "auth"
	FailureRateLimited FailureKind = "upstream_rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureRejected    FailureKind = "rejected"
	FailureMalformed   FailureKind = "malformed"
	FailureEmpty       FailureKind = "empty"
	FailureInternal    FailureKind = "internal"
)

// GenerationResult is the outcome of one generation. GeneratedPost is set
// only on success and ErrorMessage only on failure; the unset one encodes as
// null so both keys are always present.
type GenerationResult struct {
	Success        bool     `json:"success"`
	GeneratedPost  *string  `json:"generated_post"`
	ErrorMessage   *string  `json:"error_message"`
	ProcessingTime float64  `json:"processing_time"`
	Platform       Platform `json:"platform"`

	Failure FailureKind `json:"-"`
}

func succeeded(platform Platform, text string, seconds float64) *GenerationResult {
	return &GenerationResult{
		Success:        true,
		GeneratedPost:  &text,
		ProcessingTime: clampSeconds(seconds),
		Platform:       platform,
	}
}

func failed(platform Platform, kind FailureKind, seconds float64) *GenerationResult {
	msg := failureMessage(kind)
	return &GenerationResult{
		Success:        false,
		ErrorMessage:   &msg,
		ProcessingTime: clampSeconds(seconds),
		Platform:       platform,
		Failure:        kind,
	}
}

// Post returns the generated text, or "".
func (r *GenerationResult) Post() string {
	if r == nil || r.GeneratedPost == nil {
		return ""
	}
	return *r.GeneratedPost
}

// Message returns the failure message, or "".
func (r *GenerationResult) Message() string {
	if r == nil || r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

func clampSeconds(s float64) float64 {
	if s < 0 {
		return 0
	}
	return s
}
