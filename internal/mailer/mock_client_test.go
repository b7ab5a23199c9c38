package mailer

import "context"

// mockHTTPClient records the last request and returns a canned response.
type mockHTTPClient struct {
	lastReq  *HTTPRequest
	response *HTTPResponse
	err      error
}

func (m *mockHTTPClient) Do(_ context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	m.lastReq = req
	return m.response, m.err
}
