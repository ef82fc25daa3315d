////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package rest is the typed client for the AnonyMatch REST API. Response
// normalization happens here, at the fetch boundary, so the packages above
// it only ever see one shape per type.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	stderrors "errors"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const requestTimeout = 30 * time.Second

// TokenSource supplies the current bearer token. It returns "" when no
// session is active, in which case requests go out unauthenticated.
type TokenSource func() string

// Client issues requests against one AnonyMatch backend.
type Client struct {
	serverURL string
	hc        *http.Client
	token     TokenSource
}

// NewClient creates a REST client for the given base URL. token may be nil
// for a client that only performs login and registration.
func NewClient(serverURL string, token TokenSource) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		hc:        &http.Client{Timeout: requestTimeout},
		token:     token,
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string `json:"message"`
}

// Error adheres to the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// IsAuthError reports whether the error is a 401 or 403 from the backend.
// Callers force a sign-out when this is true; authentication failures are
// never silently ignored.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized ||
			apiErr.Status == http.StatusForbidden
	}
	return false
}

// do issues one JSON request. A non-nil body is encoded as the request body;
// a non-nil out receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string,
	body, out interface{}) error {

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.WithMessagef(err,
				"failed to encode request body for %s %s", method, path)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.serverURL+path, reqBody)
	if err != nil {
		return errors.WithMessagef(err,
			"failed to build request %s %s", method, path)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	jww.TRACE.Printf("%s %s", method, path)
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.WithMessagef(err, "request %s %s failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithMessagef(err,
			"failed to read response of %s %s", method, path)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		// The error body is best effort; a non-JSON body still yields a
		// usable status-only error.
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil {
			jww.DEBUG.Printf("Non-JSON error body on %s %s: %s",
				method, path, jsonErr)
		}
		return apiErr
	}

	if out != nil {
		if err = json.Unmarshal(respBody, out); err != nil {
			return errors.WithMessagef(err,
				"malformed response body for %s %s", method, path)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string,
	body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string,
	body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}
