// Package roundtrip sends a single DMS request through the circuit breaker and
// records it in metrics and traces. Both bindings build on it.
package roundtrip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/monitoring"
	"drccmis/pkg/observability"
	"drccmis/pkg/resilience"
)

// DefaultTimeout of the HTTP client used when none is injected.
const DefaultTimeout = 30 * time.Second

// Response is a 2xx answer of the DMS.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the DMS answered with a JSON body.
func (r *Response) IsJSON() bool {
	return strings.HasPrefix(r.ContentType, "application/json")
}

// Bytes returns the raw body.
func (r *Response) Bytes() []byte { return r.Body }

// JSON decodes the body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// FailFunc turns a non-2xx answer into an error.
type FailFunc func(status int, url string, body []byte) error

// Doer executes requests with basic auth. It is safe for concurrent use.
type Doer struct {
	Binding  string
	client   *http.Client
	user     string
	password string
	breaker  *resilience.Breaker
	log      *log.Helper
}

// New returns a Doer. A nil client gets DefaultTimeout; a nil breaker lets
// every request through.
func New(binding string, client *http.Client, user, password string, breaker *resilience.Breaker, logger log.Logger) *Doer {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Doer{
		Binding:  binding,
		client:   client,
		user:     user,
		password: password,
		breaker:  breaker,
		log:      log.NewHelper(log.With(logger, "module", "cmis/"+binding+"/transport")),
	}
}

// Do sends req. Network failures and an open breaker are generic transport
// errors without a status; non-2xx answers go through fail.
func (d *Doer) Do(ctx context.Context, action string, req *http.Request, fail FailFunc) (*Response, error) {
	req.SetBasicAuth(d.user, d.password)

	ctx, span := observability.StartRequestSpan(ctx, "drccmis/cmis/"+d.Binding, d.Binding, action, req)
	started := time.Now()
	target := req.URL.String()

	var result *Response
	status := 0
	err := d.breaker.Execute(func() error {
		resp, err := d.client.Do(req.WithContext(ctx))
		if err != nil {
			return cmiserr.NewTransportError(0, target, err.Error())
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return cmiserr.NewTransportError(resp.StatusCode, target, fmt.Sprintf("read response: %v", err))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fail(resp.StatusCode, target, body)
		}
		result = &Response{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
		return nil
	})
	if resilience.IsOpen(err) {
		err = cmiserr.NewTransportError(0, target, fmt.Sprintf("circuit breaker: %v", err))
	}

	monitoring.ObserveRequest(d.Binding, action, status, started)
	observability.EndRequestSpan(span, status, err)
	if err != nil {
		d.log.WithContext(ctx).Debugf("%s %s failed: %v", req.Method, action, err)
		return nil, err
	}
	d.log.WithContext(ctx).Debugf("%s %s: %d, %d bytes", req.Method, action, status, len(result.Body))
	return result, nil
}
