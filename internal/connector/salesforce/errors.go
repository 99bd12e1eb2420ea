package salesforce

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	connhttp "github.com/nucleus/ucl-salesforce/internal/connector/http"
)

// AuthenticationError reports rejected credentials or an invalid session.
type AuthenticationError struct {
	Code    string
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Code == "" {
		return "salesforce authentication failed: " + e.Message
	}
	return fmt.Sprintf("salesforce authentication failed: %s: %s", e.Code, e.Message)
}

// RemoteRequestError reports a request Salesforce understood and refused,
// such as a malformed query or an unknown object.
type RemoteRequestError struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
}

func (e *RemoteRequestError) Error() string {
	var b strings.Builder
	b.WriteString("salesforce request failed")
	if e.Resource != "" {
		b.WriteString(" (" + e.Resource + ")")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(" " + e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsRemoteRequest reports whether err is a RemoteRequestError.
func IsRemoteRequest(err error) bool {
	var target *RemoteRequestError
	return errors.As(err, &target)
}

// apiError is the union of the REST and Bulk API error bodies.
type apiError struct {
	Message          string `json:"message,omitempty"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ExceptionCode    string `json:"exceptionCode,omitempty"`
	ExceptionMessage string `json:"exceptionMessage,omitempty"`
}

func (a apiError) code() string {
	if a.ErrorCode != "" {
		return a.ErrorCode
	}
	return a.ExceptionCode
}

func (a apiError) message() string {
	if a.Message != "" {
		return a.Message
	}
	return a.ExceptionMessage
}

func parseAPIError(body string) apiError {
	body = strings.TrimSpace(body)
	var list []apiError
	if err := json.Unmarshal([]byte(body), &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var single apiError
	if err := json.Unmarshal([]byte(body), &single); err == nil && (single.code() != "" || single.message() != "") {
		return single
	}
	return apiError{Message: body}
}

// classify maps transport errors onto the connector's error taxonomy.
// Server errors and transport failures are wrapped unchanged.
func classify(resource string, err error) error {
	if err == nil {
		return nil
	}
	var httpErr *connhttp.HTTPError
	if !errors.As(err, &httpErr) {
		return fmt.Errorf("%s: %w", resource, err)
	}
	detail := parseAPIError(httpErr.Message)
	code := detail.code()
	switch {
	case httpErr.StatusCode == http.StatusUnauthorized,
		code == "INVALID_SESSION_ID",
		code == "InvalidSessionId":
		return &AuthenticationError{Code: code, Message: detail.message()}
	case httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests:
		return &RemoteRequestError{
			StatusCode: httpErr.StatusCode,
			Code:       code,
			Message:    detail.message(),
			Resource:   resource,
		}
	}
	return fmt.Errorf("%s: %w", resource, err)
}
