package errx

// HTTPErrorResponse is the wire shape every handler renders for failures.
type HTTPErrorResponse struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Type       string                 `json:"type"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"status_code"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Code:       e.Code,
		Message:    e.Message,
		Type:       string(e.Type),
		Details:    e.Details,
		StatusCode: e.HTTPStatus,
	}
}

// FromError normalizes any error into an *Error, defaulting to internal.
func FromError(err error) *Error {
	var custom *Error
	if As(err, &custom) {
		return custom
	}
	return New(err.Error(), TypeInternal)
}
