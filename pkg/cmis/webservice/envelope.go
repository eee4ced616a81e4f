package webservice

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"drccmis/pkg/cmis"
)

// XML namespaces of the request envelope.
const (
	nsSOAPEnv   = "http://schemas.xmlsoap.org/soap/envelope/"
	nsMessaging = "http://docs.oasis-open.org/ns/cmis/messaging/200908/"
	nsCore      = "http://docs.oasis-open.org/ns/cmis/core/200908/"
	nsWSSE      = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWSU       = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	nsXOP       = "http://www.w3.org/2004/08/xop/include"

	passwordText = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"

	timestampLayout = "2006-01-02T15:04:05Z"
)

type envelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SOAPEnv string   `xml:"xmlns:soapenv,attr"`
	NS      string   `xml:"xmlns:ns,attr"`
	NS1     string   `xml:"xmlns:ns1,attr"`
	Header  header   `xml:"soapenv:Header"`
	Body    body     `xml:"soapenv:Body"`
}

type header struct {
	Security security `xml:"wsse:Security"`
}

type security struct {
	WSSE          string        `xml:"xmlns:wsse,attr"`
	WSU           string        `xml:"xmlns:wsu,attr"`
	UsernameToken usernameToken `xml:"wsse:UsernameToken"`
	Timestamp     timestamp     `xml:"wsu:Timestamp"`
}

type usernameToken struct {
	ID       string   `xml:"wsu:Id,attr"`
	Username string   `xml:"wsse:Username"`
	Password password `xml:"wsse:Password"`
}

type password struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type timestamp struct {
	ID      string `xml:"wsu:Id,attr"`
	Created string `xml:"wsu:Created"`
	Expires string `xml:"wsu:Expires"`
}

type body struct {
	Request *request
}

// request is the body of one CMIS webservice call. Unset fields are left out;
// the DMS expects the set ones in the order they are declared here.
type request struct {
	XMLName           xml.Name
	RepositoryID      string         `xml:"ns:repositoryId,omitempty"`
	Properties        *properties    `xml:"ns:properties,omitempty"`
	Statement         string         `xml:"ns:statement,omitempty"`
	FolderID          string         `xml:"ns:folderId,omitempty"`
	ObjectID          string         `xml:"ns:objectId,omitempty"`
	ContentStream     *contentStream `xml:"ns:contentStream,omitempty"`
	Major             *bool          `xml:"ns:major,omitempty"`
	CheckinComment    string         `xml:"ns:checkinComment,omitempty"`
	SourceFolderID    string         `xml:"ns:sourceFolderId,omitempty"`
	TargetFolderID    string         `xml:"ns:targetFolderId,omitempty"`
	ContinueOnFailure *bool          `xml:"ns:continueOnFailure,omitempty"`
	AllVersions       *bool          `xml:"ns:allVersions,omitempty"`
	MaxItems          int            `xml:"ns:maxItems,omitempty"`
	SkipCount         int            `xml:"ns:skipCount,omitempty"`

	service     string
	action      string
	attachments []attachment
}

type properties struct {
	Items []property
}

type property struct {
	XMLName      xml.Name
	DefinitionID string  `xml:"propertyDefinitionId,attr"`
	Value        *string `xml:"ns1:value,omitempty"`
}

type contentStream struct {
	MimeType string  `xml:"ns:mimeType"`
	Stream   include `xml:"ns:stream"`
	Filename string  `xml:"ns:filename"`
}

type include struct {
	Include xopInclude `xml:"inc:Include"`
}

type xopInclude struct {
	XMLNS string `xml:"xmlns:inc,attr"`
	Href  string `xml:"href,attr"`
}

// attachment is a binary MTOM part referenced from the envelope by its
// content id.
type attachment struct {
	ContentID string
	Data      []byte
}

// newRequest starts the body of a CMIS action sent to service.
func newRequest(service, action, repositoryID string) *request {
	return &request{
		XMLName:      xml.Name{Local: "ns:" + action},
		RepositoryID: repositoryID,
		service:      service,
		action:       action,
	}
}

// withProperties sets the property bag, leaving out the ids in skip. A property
// without a value is sent without a value element, which clears it.
func (r *request) withProperties(props cmis.Properties, skip ...string) *request {
	skipped := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipped[id] = true
	}
	p := &properties{}
	for _, id := range sortedIDs(props) {
		if skipped[id] {
			continue
		}
		prop := props[id]
		item := property{
			XMLName:      xml.Name{Local: "ns1:" + prop.Type.SOAPName()},
			DefinitionID: id,
		}
		if !prop.IsZero() {
			value := prop.String()
			item.Value = &value
		}
		p.Items = append(p.Items, item)
	}
	r.Properties = p
	return r
}

// withContent attaches content under a fresh content id. The mime type falls
// back to a guess from the file name.
func (r *request) withContent(content cmis.ContentStream, fallbackName string) *request {
	fileName := content.FileName
	if fileName == "" {
		fileName = fallbackName
	}
	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = cmis.GuessMimeType(fileName)
	}

	id := uuid.NewString()
	r.ContentStream = &contentStream{
		MimeType: mimeType,
		Stream:   include{Include: xopInclude{XMLNS: nsXOP, Href: "cid:" + id}},
		Filename: fileName,
	}
	r.attachments = append(r.attachments, attachment{ContentID: id, Data: content.Data})
	return r
}

func boolPtr(b bool) *bool { return &b }

// sortedIDs lists cmis:name and cmis:objectTypeId first, then the other ids
// alphabetically.
func sortedIDs(props cmis.Properties) []string {
	ids := make([]string, 0, len(props))
	for id := range props {
		if id != cmis.PropName && id != cmis.PropObjectTypeID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, first := range []string{cmis.PropObjectTypeID, cmis.PropName} {
		if props.Has(first) {
			ids = append([]string{first}, ids...)
		}
	}
	return ids
}

// marshalEnvelope wraps req in a SOAP envelope with a WS-Security header that
// is valid for 24 hours from now.
func marshalEnvelope(req *request, user, pass string, now time.Time) ([]byte, error) {
	id := uuid.New().String()
	env := envelope{
		SOAPEnv: nsSOAPEnv,
		NS:      nsMessaging,
		NS1:     nsCore,
		Header: header{Security: security{
			WSSE: nsWSSE,
			WSU:  nsWSU,
			UsernameToken: usernameToken{
				ID:       "UsernameToken-" + id,
				Username: user,
				Password: password{Type: passwordText, Value: pass},
			},
			Timestamp: timestamp{
				ID:      "TS-" + id,
				Created: now.UTC().Format(timestampLayout),
				Expires: now.UTC().Add(24 * time.Hour).Format(timestampLayout),
			},
		}},
		Body: body{Request: req},
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", req.action, err)
	}
	return append([]byte(xml.Header), out...), nil
}
