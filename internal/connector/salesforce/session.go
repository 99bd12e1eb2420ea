package salesforce

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	connhttp "github.com/nucleus/ucl-salesforce/internal/connector/http"
)

// Session is an authenticated Salesforce session.
type Session struct {
	ID          string
	InstanceURL string
	ServerURL   string
	UserID      string
	OrgID       string
}

type loginEnvelope struct {
	Body struct {
		Response *struct {
			Result struct {
				ServerURL string `xml:"serverUrl"`
				SessionID string `xml:"sessionId"`
				UserID    string `xml:"userId"`
				UserInfo  struct {
					OrganizationID string `xml:"organizationId"`
				} `xml:"userInfo"`
			} `xml:"result"`
		} `xml:"loginResponse"`
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func loginRequestBody(clientName string, creds Credentials) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8" ?>`)
	b.WriteString(`<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:env="http://schemas.xmlsoap.org/soap/envelope/" xmlns:urn="urn:partner.soap.sforce.com">`)
	b.WriteString(`<env:Header><urn:CallOptions><urn:client>`)
	xml.EscapeText(&b, []byte(clientName))
	b.WriteString(`</urn:client></urn:CallOptions></env:Header>`)
	b.WriteString(`<env:Body><n1:login xmlns:n1="urn:partner.soap.sforce.com"><n1:username>`)
	xml.EscapeText(&b, []byte(creds.Username))
	b.WriteString(`</n1:username><n1:password>`)
	xml.EscapeText(&b, []byte(creds.Password+creds.SecurityToken))
	b.WriteString(`</n1:password></n1:login></env:Body></env:Envelope>`)
	return b.Bytes()
}

// Login authenticates with the SOAP partner API and binds the resulting
// session to the connector. Rejected credentials yield *AuthenticationError.
func (s *Salesforce) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" || creds.SecurityToken == "" {
		return nil, &AuthenticationError{Code: "INVALID_LOGIN", Message: "username, password and security token are required"}
	}

	resp, err := s.Client.Do(ctx, &connhttp.Request{
		Method: http.MethodPost,
		Path:   s.config.loginBase() + "/services/Soap/u/" + s.config.APIVersion,
		Body:   loginRequestBody(s.config.ClientName, creds),
		Headers: map[string]string{
			"Content-Type": "text/xml; charset=UTF-8",
			"SOAPAction":   "login",
		},
		NoRetry: true,
	})

	var body []byte
	if resp != nil {
		body = resp.Body
	}
	var env loginEnvelope
	if len(body) > 0 {
		if xerr := xml.Unmarshal(body, &env); xerr != nil && err == nil {
			return nil, fmt.Errorf("decode login response: %w", xerr)
		}
	}
	if f := env.Body.Fault; f != nil {
		code := f.Code
		if i := strings.LastIndex(code, ":"); i >= 0 {
			code = code[i+1:]
		}
		return nil, &AuthenticationError{Code: code, Message: f.String}
	}
	if err != nil {
		var httpErr *connhttp.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &AuthenticationError{Code: fmt.Sprintf("HTTP_%d", httpErr.StatusCode), Message: strings.TrimSpace(httpErr.Message)}
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if env.Body.Response == nil || env.Body.Response.Result.SessionID == "" {
		return nil, &AuthenticationError{Code: "INVALID_RESPONSE", Message: "login response carried no session"}
	}

	result := env.Body.Response.Result
	instance, err := instanceURL(result.ServerURL)
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:          result.SessionID,
		InstanceURL: instance,
		ServerURL:   result.ServerURL,
		UserID:      result.UserID,
		OrgID:       result.UserInfo.OrganizationID,
	}
	s.bind(session)

	s.config.Logger.Debug().
		Str("instance", session.InstanceURL).
		Str("user_id", session.UserID).
		Msg("salesforce login succeeded")
	return session, nil
}

func instanceURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &AuthenticationError{Code: "INVALID_RESPONSE", Message: fmt.Sprintf("invalid server url %q", serverURL)}
	}
	return u.Scheme + "://" + u.Host, nil
}
