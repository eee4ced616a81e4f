package cmis

import (
	"strings"

	"github.com/shopspring/decimal"

	cmiserr "drccmis/pkg/errors"
)

// DefaultCheckinComment is written on every checkin done by an unlock.
const DefaultCheckinComment = "Updated via Documenten API"

// VersionPolicy decides how a checkin numbers the new version.
type VersionPolicy struct {
	MajorCheckin   bool
	CheckinComment string
}

// DefaultVersionPolicy is used when none is configured. Alfresco and Corsa
// both number a major checkin as the next integer version, the minor part of
// content updates is up to the DMS.
func DefaultVersionPolicy() VersionPolicy {
	return VersionPolicy{MajorCheckin: true, CheckinComment: DefaultCheckinComment}
}

func (p VersionPolicy) withDefaults() VersionPolicy {
	if p.CheckinComment == "" {
		p.CheckinComment = DefaultCheckinComment
	}
	return p
}

// ExtractLatestVersion picks the latest version out of a "latest version and
// PWC" query. Some vendors return the latest version plus the PWC, others only
// the PWC.
func ExtractLatestVersion(objects []*Object) (*Object, error) {
	switch len(objects) {
	case 0:
		return nil, cmiserr.ErrDocumentNotFound
	case 1:
		return objects[0], nil
	case 2:
		for _, o := range objects {
			if strings.EqualFold(o.VersionLabel(), PWCLabel) {
				return o, nil
			}
		}
		return nil, cmiserr.Errorf(cmiserr.ErrAmbiguousVersions, "two versions returned and none is a private working copy")
	default:
		return nil, cmiserr.Errorf(cmiserr.ErrAmbiguousVersions, "%d versions returned for one document", len(objects))
	}
}

// LatestNotPWC returns the latest checked-in version out of a query result,
// ignoring a private working copy.
func LatestNotPWC(objects []*Object) (*Object, error) {
	var latest *Object
	for _, o := range objects {
		if o.IsPrivateWorkingCopy() {
			continue
		}
		if latest == nil || newerVersion(o, latest) {
			latest = o
		}
	}
	if latest == nil {
		return nil, cmiserr.ErrDocumentNotFound
	}
	return latest, nil
}

func newerVersion(a, b *Object) bool {
	aLatest, bLatest := a.Properties.Bool(PropIsLatestVersion), b.Properties.Bool(PropIsLatestVersion)
	if aLatest != bLatest {
		return aLatest
	}
	av, aErr := decimal.NewFromString(a.VersionLabel())
	bv, bErr := decimal.NewFromString(b.VersionLabel())
	if aErr != nil || bErr != nil {
		return false
	}
	return av.GreaterThan(bv)
}
