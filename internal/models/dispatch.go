// -----------------------------------------------------------------------
// Request dispatcher wire types
// -----------------------------------------------------------------------

package models

// APIRequest is an arbitrary outbound request issued on behalf of the console
// UI. Headers are passed through untouched; the UI derives auth headers from
// the current session snapshot.
type APIRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`

	// Body is the raw request body. Ignored when Multipart is set.
	Body string `json:"body,omitempty"`

	// Multipart, when non-nil, describes a multipart/form-data body that the
	// dispatcher assembles server-side (file parts arrive base64-encoded).
	Multipart *MultipartBody `json:"multipart,omitempty"`
}

// MultipartBody describes a multipart/form-data payload.
type MultipartBody struct {
	Boundary string          `json:"boundary"`
	Parts    []MultipartPart `json:"parts"`
}

// MultipartPart is a single form part. Type is "text" or "file".
type MultipartPart struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	Value         string `json:"value,omitempty"`
	FileName      string `json:"fileName,omitempty"`
	ContentBase64 string `json:"contentBase64,omitempty"`
}

// APIResponse carries the upstream response back to the UI unchanged.
// Non-2xx statuses are data, not errors.
type APIResponse struct {
	Status     int                 `json:"status"`
	StatusText string              `json:"statusText"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"data"`
}

// UnitSessionRequest binds a selected accounting unit to the current session.
type UnitSessionRequest struct {
	UserSessionID       string `json:"userSessionId"`
	AccAccountingDataID string `json:"accAccountingDataId"`
	UnitID              string `json:"unitId"`
	UserID              string `json:"userId"`
}
