package webservice

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"drccmis/pkg/cmis/internal/roundtrip"
	cmiserr "drccmis/pkg/errors"
)

const bindingName = "webservice"

// CMIS webservice endpoints.
const (
	RepositoryService = "RepositoryService"
	ObjectService     = "ObjectService"
	VersioningService = "VersioningService"
	DiscoveryService  = "DiscoveryService"
	NavigationService = "NavigationService"
)

// transport posts MTOM framed SOAP envelopes. Credentials travel in the
// WS-Security header as well as with basic auth.
type transport struct {
	baseURL  string
	boundary string
	user     string
	password string
	now      func() time.Time
	doer     *roundtrip.Doer
	log      *log.Helper
}

func newTransport(opts Options) *transport {
	return &transport{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		boundary: opts.Boundary,
		user:     opts.User,
		password: opts.Password,
		now:      opts.Now,
		doer:     roundtrip.New(bindingName, opts.HTTPClient, opts.User, opts.Password, opts.Breaker, opts.Logger),
		log:      log.NewHelper(log.With(opts.Logger, "module", "cmis/webservice/transport")),
	}
}

// post sends req to its service. Failures are classified by status with the
// response text as message.
func (t *transport) post(ctx context.Context, req *request) (*roundtrip.Response, error) {
	env, err := marshalEnvelope(req, t.user, t.password, t.now())
	if err != nil {
		return nil, err
	}
	body, err := writeMTOM(t.boundary, env, req.attachments)
	if err != nil {
		return nil, err
	}

	target := t.baseURL + "/" + req.service
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType(t.boundary))
	httpReq.Header.Set("SOAPAction", "")
	httpReq.Header.Set("MIME-Version", "1.0")

	t.log.WithContext(ctx).Debugf("POST %s %s objectId=%s", target, req.action, req.ObjectID)
	return t.doer.Do(ctx, req.action, httpReq, func(status int, url string, body []byte) error {
		err := cmiserr.FromStatus(status, url, string(body), strconv.Itoa(status))
		if req.action == "query" && isEmptyResultFault(err) {
			return cmiserr.Wrap(cmiserr.ErrNoResults, err, "query at %s has no results", url)
		}
		return err
	})
}

// isEmptyResultFault reports the runtime fault Corsa answers a query without
// results with.
func isEmptyResultFault(err error) bool {
	if !cmiserr.IsRuntime(err) {
		return false
	}
	return strings.Contains(kerrors.FromError(err).Message, "objectNotFound")
}

// call posts req and parses the SOAP answer.
func (t *transport) call(ctx context.Context, req *request, loc *time.Location) (*response, error) {
	resp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	parsed, err := parseResponse(resp.Body, req.action, loc)
	if err != nil {
		return nil, cmiserr.NewNoValidResponse(resp.Status, t.baseURL+"/"+req.service, err.Error())
	}
	return parsed, nil
}
