package webservice

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"strings"

	cmiserr "drccmis/pkg/errors"
)

// DefaultBoundary separates the MTOM parts of every request.
const DefaultBoundary = "----=_Part_52_1132425564.1594208078802"

const rootContentID = "<rootpart@soapui.org>"

// contentType is the request Content-Type for boundary.
func contentType(boundary string) string {
	return fmt.Sprintf(`multipart/related; type="application/xop+xml"; start=%q; start-info="application/soap+xml"; boundary=%q`,
		rootContentID, boundary)
}

// writeMTOM frames the envelope as the root part, followed by one binary part
// per attachment.
func writeMTOM(boundary string, env []byte, attachments []attachment) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, fmt.Errorf("set boundary %q: %w", boundary, err)
	}

	root := make(textproto.MIMEHeader)
	root.Set("Content-Type", `application/xop+xml; charset=UTF-8; type="application/soap+xml"`)
	root.Set("Content-Transfer-Encoding", "8bit")
	root.Set("Content-ID", rootContentID)
	part, err := w.CreatePart(root)
	if err != nil {
		return nil, fmt.Errorf("create root part: %w", err)
	}
	if _, err := part.Write(env); err != nil {
		return nil, fmt.Errorf("write envelope: %w", err)
	}

	for _, a := range attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Transfer-Encoding", "binary")
		h.Set("Content-ID", "<"+a.ContentID+">")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", a.ContentID, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mtom body: %w", err)
	}
	return buf.Bytes(), nil
}

var attachmentPattern = regexp.MustCompile(`(?s)Content-Disposition: attachment;.+?\r\n\r\n(.+?)\r\n--uuid:.+?--`)

// extractContent returns the first attachment of an MTOM response. The
// multipart structure is read first; responses it cannot parse fall back to a
// pattern match on the raw body.
func extractContent(contentType string, body []byte, url string, status int) ([]byte, error) {
	if data, ok := firstAttachment(contentType, body); ok {
		return data, nil
	}
	if m := attachmentPattern.FindSubmatch(body); m != nil {
		return m[1], nil
	}
	return nil, cmiserr.NewNoValidResponse(status, url, "no attachment in content stream response")
}

func firstAttachment(contentType string, body []byte) ([]byte, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil, false
	}
	start := params["start"]

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for i := 0; ; i++ {
		part, err := r.NextRawPart()
		if err != nil {
			return nil, false
		}
		id := part.Header.Get("Content-ID")
		isRoot := (start != "" && id == start) || (start == "" && i == 0)
		if isRoot {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, false
		}
		return data, true
	}
}

// envelopePattern finds the SOAP envelope in a response, whatever its prefix.
var envelopePattern = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9_-]+:)?Envelope[\s>].*</(?:[A-Za-z0-9_-]+:)?Envelope>`)

// extractEnvelope cuts the SOAP envelope out of a (possibly multipart)
// response body.
func extractEnvelope(body []byte) ([]byte, bool) {
	loc := envelopePattern.FindIndex(body)
	if loc == nil {
		return nil, false
	}
	return body[loc[0]:loc[1]], true
}
