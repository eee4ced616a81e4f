package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"drccmis/pkg/cmis/internal/roundtrip"
	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/resilience"
)

const bindingName = "browser"

// FilePart is a file attached to a multipart POST.
type FilePart struct {
	FieldName string
	FileName  string
	MimeType  string
	Data      []byte
}

// Response is a successful DMS response.
type Response = roundtrip.Response

func isEmpty(r *Response) bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Transport sends browser binding requests. It is safe for concurrent use.
type Transport struct {
	doer *roundtrip.Doer
	log  *log.Helper
}

// NewTransport returns a transport. A nil client gets a default timeout; a nil
// breaker disables the circuit breaker.
func NewTransport(client *http.Client, user, password string, breaker *resilience.Breaker, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Transport{
		doer: roundtrip.New(bindingName, client, user, password, breaker, logger),
		log:  log.NewHelper(log.With(logger, "module", "cmis/browser/transport")),
	}
}

// Get sends a GET. Any failure is a generic transport error.
func (t *Transport) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	target := rawURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	action := params.Get("cmisselector")
	if action == "" {
		action = "repositoryInfo"
	}
	t.log.WithContext(ctx).Debugf("GET %s %s", rawURL, params.Encode())

	return t.doer.Do(ctx, action, req, func(status int, _ string, body []byte) error {
		return cmiserr.NewTransportError(status, rawURL, fmt.Sprintf("GET %s failed: %s", action, strings.TrimSpace(string(body))))
	})
}

// Post sends a form, or a multipart form when file is set. Failures are
// classified by status with the message and exception of the JSON error body.
func (t *Transport) Post(ctx context.Context, rawURL string, form url.Values, file *FilePart) (*Response, error) {
	var (
		body        io.Reader
		contentType string
	)
	if file == nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		buf, ct, err := multipartBody(form, file)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	action := form.Get("cmisaction")
	t.log.WithContext(ctx).Debugf("POST %s cmisaction=%s objectId=%s", rawURL, action, form.Get("objectId"))

	resp, err := t.doer.Do(ctx, action, req, func(status int, _ string, body []byte) error {
		var fault struct {
			Exception string `json:"exception"`
			Message   string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &fault); jsonErr != nil {
			fault.Message = strings.TrimSpace(string(body))
		}
		return cmiserr.FromStatus(status, rawURL, fault.Message, fault.Exception)
	})
	if err != nil {
		return nil, err
	}
	if resp.IsJSON() && !isEmpty(resp) && !json.Valid(resp.Body) {
		return nil, cmiserr.NewNoValidResponse(resp.Status, rawURL, string(resp.Body))
	}
	return resp, nil
}

func multipartBody(form url.Values, file *FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for key, values := range form {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", key, err)
			}
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.FieldName, file.FileName))
	header.Set("Content-Type", file.MimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
