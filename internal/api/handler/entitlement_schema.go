package handler

// signalsRequest carries the weak environment signals the browser reports.
// All fields are optional: missing signals degrade fingerprint entropy but
// never fail the request.
type signalsRequest struct {
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
	Locale           string `json:"locale"`
	Platform         string `json:"platform"`
	RendererDigest   string `json:"renderer_digest"`
	UserAgent        string `json:"user_agent"`
}

type checkRequest struct {
	Signals signalsRequest `json:"signals"`
}

type consumeRequest struct {
	Signals signalsRequest `json:"signals"`
	Feature string         `json:"feature" validate:"required"`
}

type decisionResponse struct {
	Kind          string `json:"kind"`
	Remaining     int    `json:"remaining"`
	SuggestedTier string `json:"suggested_tier,omitempty"`
}

type consumeResponse struct {
	Decision decisionResponse `json:"decision"`
	Recorded bool             `json:"recorded"`
	// TrackingFailed flags an invocation that ran but was not billed; it is
	// informational for the caller, not a failure.
	TrackingFailed bool `json:"tracking_failed,omitempty"`
}

type usageResponse struct {
	Tier      string `json:"tier"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	CycleEnd  int64  `json:"cycle_end,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
