// Package httpclient is the outbound HTTP client used by remote executors.
// It adds header-based authentication, rate limiting, trace context
// propagation and classified errors on top of net/http.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://agents.internal:8080",
//	    Timeout: 2 * time.Minute,
//	    Auth:    &httpclient.AuthConfig{Type: httpclient.AuthBearer, Token: token},
//	})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/v1/execute",
//	    Body:   payload,
//	})
//
// Errors are *Error values; they convert to *errors.AppError so handlers can
// render them directly.
package httpclient
