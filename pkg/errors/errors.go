package errors

import (
	"fmt"
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

// Transport error reasons. Every failed DMS request is classified into one of
// these at the transport boundary.
const (
	ReasonPermissionDenied = "CMIS_PERMISSION_DENIED"
	ReasonInvalidArgument  = "CMIS_INVALID_ARGUMENT"
	ReasonObjectNotFound   = "CMIS_OBJECT_NOT_FOUND"
	ReasonNotSupported     = "CMIS_NOT_SUPPORTED"
	ReasonUpdateConflict   = "CMIS_UPDATE_CONFLICT"
	ReasonRuntime          = "CMIS_RUNTIME"
	ReasonBase             = "CMIS_ERROR"
	ReasonNoValidResponse  = "CMIS_NO_VALID_RESPONSE"
	ReasonNoResults        = "CMIS_NO_RESULTS"
)

// Domain error reasons.
const (
	ReasonDocumentNotFound  = "DOCUMENT_NOT_FOUND"
	ReasonFolderNotFound    = "FOLDER_NOT_FOUND"
	ReasonDocumentExists    = "DOCUMENT_EXISTS"
	ReasonDocumentLocked    = "DOCUMENT_LOCKED"
	ReasonDocumentNotLocked = "DOCUMENT_NOT_LOCKED"
	ReasonLockConflict      = "LOCK_CONFLICT"
	ReasonLockDidNotMatch   = "LOCK_DID_NOT_MATCH"
	ReasonDocumentConflict  = "DOCUMENT_CONFLICT"
	ReasonAmbiguousVersions = "AMBIGUOUS_VERSIONS"
)

// Configuration error reasons. These are expected to abort startup.
const (
	ReasonRepositoryNotFound = "CMIS_REPOSITORY_DOES_NOT_EXIST"
	ReasonUnresolvedMapping  = "UNRESOLVED_PROPERTY_MAPPING"
	ReasonInvalidFolderPath  = "INVALID_FOLDER_PATH"
	ReasonURLTooLong         = "URL_TOO_LONG"
	ReasonNoURLMapping       = "NO_URL_MAPPING"
	ReasonInvalidBinding     = "INVALID_BINDING"
)

// Metadata keys attached to transport errors.
const (
	MetadataStatus       = "status"
	MetadataURL          = "url"
	MetadataUpstreamCode = "upstream_code"
)

// Domain errors
var (
	ErrDocumentNotFound  = errors.NotFound(ReasonDocumentNotFound, "document does not exist")
	ErrFolderNotFound    = errors.NotFound(ReasonFolderNotFound, "folder does not exist")
	ErrDocumentExists    = errors.Conflict(ReasonDocumentExists, "document identification is not unique")
	ErrDocumentLocked    = errors.Conflict(ReasonDocumentLocked, "document was already checked out")
	ErrDocumentNotLocked = errors.BadRequest(ReasonDocumentNotLocked, "document is not checked out and/or locked")
	ErrLockConflict      = errors.Conflict(ReasonLockConflict, "wrong document lock given")
	ErrLockDidNotMatch   = errors.Conflict(ReasonLockDidNotMatch, "lock did not match")
	ErrDocumentConflict  = errors.Conflict(ReasonDocumentConflict, "document was updated concurrently")
	ErrAmbiguousVersions = errors.InternalServer(ReasonAmbiguousVersions, "unexpected number of document versions")
	ErrNoResults         = errors.NotFound(ReasonNoResults, "query returned no results")
)

// Configuration errors
var (
	ErrRepositoryNotFound = errors.InternalServer(ReasonRepositoryNotFound, "configured repository does not exist")
	ErrUnresolvedMapping  = errors.InternalServer(ReasonUnresolvedMapping, "property mapping is incomplete")
	ErrInvalidFolderPath  = errors.BadRequest(ReasonInvalidFolderPath, "invalid folder path")
	ErrURLTooLong         = errors.BadRequest(ReasonURLTooLong, "shortened URL is too long")
	ErrNoURLMapping       = errors.InternalServer(ReasonNoURLMapping, "no URL mapping matches")
	ErrInvalidBinding     = errors.BadRequest(ReasonInvalidBinding, "unknown CMIS binding")
)

// Wrap returns a copy of sentinel with a more specific message and the given
// cause. errors.Is keeps matching the sentinel.
func Wrap(sentinel *errors.Error, cause error, format string, args ...interface{}) *errors.Error {
	e := errors.Clone(sentinel)
	e.Message = fmt.Sprintf(format, args...)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// Errorf returns a copy of sentinel with a formatted message.
func Errorf(sentinel *errors.Error, format string, args ...interface{}) *errors.Error {
	return Wrap(sentinel, nil, format, args...)
}

// FromStatus classifies a failed DMS response by its HTTP status.
func FromStatus(status int, url, message, upstreamCode string) *errors.Error {
	var reason string
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason = ReasonPermissionDenied
	case http.StatusBadRequest:
		reason = ReasonInvalidArgument
	case http.StatusNotFound:
		reason = ReasonObjectNotFound
	case http.StatusMethodNotAllowed:
		reason = ReasonNotSupported
	case http.StatusConflict:
		reason = ReasonUpdateConflict
	case http.StatusInternalServerError:
		reason = ReasonRuntime
	default:
		reason = ReasonBase
	}
	return newTransportError(status, reason, url, message, upstreamCode)
}

// NewTransportError is an unclassified failure talking to the DMS.
func NewTransportError(status int, url, message string) *errors.Error {
	return newTransportError(status, ReasonBase, url, message, "")
}

// NewNoValidResponse reports a successful status with an unparseable body.
func NewNoValidResponse(status int, url, message string) *errors.Error {
	return newTransportError(status, ReasonNoValidResponse, url, message, "invalid_response")
}

func newTransportError(status int, reason, url, message, upstreamCode string) *errors.Error {
	code := status
	if code <= 0 {
		code = http.StatusBadGateway
	}
	return errors.New(code, reason, message).WithMetadata(map[string]string{
		MetadataStatus:       fmt.Sprintf("%d", status),
		MetadataURL:          url,
		MetadataUpstreamCode: upstreamCode,
	})
}

// Status returns the upstream HTTP status carried by a transport error, or 0.
func Status(err error) int {
	e := errors.FromError(err)
	if e == nil {
		return 0
	}
	var status int
	if _, scanErr := fmt.Sscanf(e.Metadata[MetadataStatus], "%d", &status); scanErr != nil {
		return 0
	}
	return status
}

// IsPermissionDenied reports a 401/403 from the DMS.
func IsPermissionDenied(err error) bool { return errors.Reason(err) == ReasonPermissionDenied }

// IsInvalidArgument reports a 400 from the DMS.
func IsInvalidArgument(err error) bool { return errors.Reason(err) == ReasonInvalidArgument }

// IsObjectNotFound reports a 404 from the DMS.
func IsObjectNotFound(err error) bool { return errors.Reason(err) == ReasonObjectNotFound }

// IsNotSupported reports a 405 from the DMS.
func IsNotSupported(err error) bool { return errors.Reason(err) == ReasonNotSupported }

// IsUpdateConflict reports a 409 from the DMS.
func IsUpdateConflict(err error) bool { return errors.Reason(err) == ReasonUpdateConflict }

// IsRuntime reports a 500 from the DMS.
func IsRuntime(err error) bool { return errors.Reason(err) == ReasonRuntime }

// IsNoResults reports a query that matched nothing.
func IsNoResults(err error) bool { return errors.Reason(err) == ReasonNoResults }

// IsNotFound reports any kind of lookup miss, local or remote.
func IsNotFound(err error) bool {
	switch errors.Reason(err) {
	case ReasonObjectNotFound, ReasonNoResults, ReasonDocumentNotFound, ReasonFolderNotFound:
		return true
	}
	return false
}

// IsTransport reports whether err was produced by a transport classification.
func IsTransport(err error) bool {
	switch errors.Reason(err) {
	case ReasonPermissionDenied, ReasonInvalidArgument, ReasonObjectNotFound, ReasonNotSupported,
		ReasonUpdateConflict, ReasonRuntime, ReasonBase, ReasonNoValidResponse:
		return true
	}
	return false
}
