package cmis

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	cmiserr "drccmis/pkg/errors"
)

const fakeRootID = "root"

type fakeEntry struct {
	props   Properties
	content []byte
	seq     int
}

// fakeBinding is an in-memory repository that follows the CMIS versioning
// model closely enough for the client: checkouts create a PWC, checkins add a
// version and queries only return latest versions and PWCs.
type fakeBinding struct {
	mu sync.Mutex

	vendor  string
	shorten bool

	seq     int
	objects map[string]*fakeEntry
	// parents maps a version series id (or folder id) to its folder ids.
	parents map[string][]string

	calls   map[string]int
	queries []string
	fail    map[string]error
}

func newFakeBinding() *fakeBinding {
	f := &fakeBinding{
		vendor:  "Fake",
		objects: map[string]*fakeEntry{},
		parents: map[string][]string{},
		calls:   map[string]int{},
		fail:    map[string]error{},
	}
	f.objects[fakeRootID] = &fakeEntry{props: Properties{
		PropObjectID:     {Type: TypeID, Value: fakeRootID},
		PropObjectTypeID: {Type: TypeID, Value: "cmis:folder"},
		PropBaseTypeID:   {Type: TypeID, Value: "cmis:folder"},
		PropName:         {Type: TypeString, Value: "Company Home"},
	}}
	return f
}

func (f *fakeBinding) call(name string) error {
	f.calls[name]++
	return f.fail[name]
}

func (f *fakeBinding) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBinding) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
	f.queries = nil
}

func notFound(id string) error {
	return cmiserr.FromStatus(http.StatusNotFound, "fake://"+id, "object not found: "+id, "objectNotFound")
}

func conflict(format string, args ...interface{}) error {
	return cmiserr.FromStatus(http.StatusConflict, "fake://", fmt.Sprintf(format, args...), "constraint")
}

func (f *fakeBinding) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func seriesKey(e *fakeEntry) string {
	if id := e.props.String(PropVersionSeriesID); id != "" {
		return id
	}
	return e.props.String(PropObjectID)
}

func (f *fakeBinding) snapshot(e *fakeEntry) *Object {
	return NewObject(e.props.Clone())
}

func (f *fakeBinding) get(id string) (*fakeEntry, error) {
	e, ok := f.objects[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func isFolder(e *fakeEntry) bool { return e.props.String(PropBaseTypeID) == "cmis:folder" }

func (f *fakeBinding) Name() string            { return "fake" }
func (f *fakeBinding) NeedsURLShortening() bool { return f.shorten }

func (f *fakeBinding) RepositoryInfo(context.Context) (*RepositoryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RepositoryInfo"); err != nil {
		return nil, err
	}
	return &RepositoryInfo{
		ID:           "fake-repo",
		Name:         "Fake",
		VendorName:   f.vendor,
		RootFolderID: fakeRootID,
		Capabilities: map[string]string{"Multifiling": "true"},
	}, nil
}

func (f *fakeBinding) GetObject(_ context.Context, objectID string) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetObject"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	return f.snapshot(e), nil
}

func (f *fakeBinding) nameTaken(folderID, name string) bool {
	for _, e := range f.objects {
		if e.props.String(PropName) != name {
			continue
		}
		if e.props.Bool(PropIsPrivateWorkingCopy) {
			continue
		}
		for _, p := range f.parents[seriesKey(e)] {
			if p == folderID {
				return true
			}
		}
	}
	return false
}

func (f *fakeBinding) CreateFolder(_ context.Context, parentID string, props Properties) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateFolder"); err != nil {
		return nil, err
	}
	if _, err := f.get(parentID); err != nil {
		return nil, err
	}
	name := props.String(PropName)
	if f.nameTaken(parentID, name) {
		return nil, conflict("folder %s already exists", name)
	}

	id := f.nextID("folder")
	all := props.Clone()
	all[PropObjectID] = Property{Type: TypeID, Value: id}
	all[PropBaseTypeID] = Property{Type: TypeID, Value: "cmis:folder"}
	all[PropParentID] = Property{Type: TypeID, Value: parentID}
	e := &fakeEntry{props: all, seq: f.seq}
	f.objects[id] = e
	f.parents[id] = []string{parentID}
	return f.snapshot(e), nil
}

func (f *fakeBinding) CreateDocument(_ context.Context, folderID string, props Properties, content *ContentStream) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateDocument"); err != nil {
		return nil, err
	}
	if _, err := f.get(folderID); err != nil {
		return nil, err
	}
	if f.nameTaken(folderID, props.String(PropName)) {
		return nil, conflict("document %s already exists", props.String(PropName))
	}

	series := f.nextID("doc")
	id := series + ";1.0"
	all := props.Clone()
	all[PropObjectID] = Property{Type: TypeID, Value: id}
	all[PropBaseTypeID] = Property{Type: TypeID, Value: "cmis:document"}
	all[PropVersionSeriesID] = Property{Type: TypeID, Value: series}
	all[PropVersionLabel] = Property{Type: TypeString, Value: "1.0"}
	all[PropIsLatestVersion] = Property{Type: TypeBoolean, Value: true}
	all[PropIsPrivateWorkingCopy] = Property{Type: TypeBoolean, Value: false}
	all[PropIsVersionSeriesCheckedOut] = Property{Type: TypeBoolean, Value: false}
	all[PropVersionSeriesCheckedOutID] = Property{Type: TypeID}
	e := &fakeEntry{props: all, seq: f.seq}
	if content != nil {
		e.content = append([]byte(nil), content.Data...)
		setContentProps(all, *content)
	}
	f.objects[id] = e
	f.parents[series] = []string{folderID}
	return f.snapshot(e), nil
}

func setContentProps(props Properties, content ContentStream) {
	props[PropContentStreamLength] = Property{Type: TypeInteger, Value: int64(len(content.Data))}
	props[PropContentStreamMimeType] = Property{Type: TypeString, Value: content.MimeType}
	props[PropContentStreamFileName] = Property{Type: TypeString, Value: content.FileName}
}

func (f *fakeBinding) checkedOut(series string) *fakeEntry {
	for _, e := range f.objects {
		if e.props.String(PropVersionSeriesID) == series && e.props.Bool(PropIsPrivateWorkingCopy) {
			return e
		}
	}
	return nil
}

func (f *fakeBinding) UpdateProperties(_ context.Context, objectID string, props Properties) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateProperties"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	if series := e.props.String(PropVersionSeriesID); series != "" && !e.props.Bool(PropIsPrivateWorkingCopy) {
		if f.checkedOut(series) != nil {
			return nil, conflict("document %s is checked out", objectID)
		}
	}
	for id, prop := range props {
		e.props[id] = prop
	}
	return f.snapshot(e), nil
}

func (f *fakeBinding) SetContentStream(_ context.Context, objectID string, content ContentStream) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("SetContentStream"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	e.content = append([]byte(nil), content.Data...)
	setContentProps(e.props, content)
	return f.snapshot(e), nil
}

func (f *fakeBinding) GetContentStream(_ context.Context, objectID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetContentStream"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.content...), nil
}

func (f *fakeBinding) latest(series string) *fakeEntry {
	for _, e := range f.objects {
		if e.props.String(PropVersionSeriesID) == series && e.props.Bool(PropIsLatestVersion) {
			return e
		}
	}
	return nil
}

func (f *fakeBinding) markCheckedOut(series, pwcID string) {
	for _, e := range f.objects {
		if e.props.String(PropVersionSeriesID) != series {
			continue
		}
		e.props[PropIsVersionSeriesCheckedOut] = Property{Type: TypeBoolean, Value: pwcID != ""}
		if pwcID == "" {
			e.props[PropVersionSeriesCheckedOutID] = Property{Type: TypeID}
		} else {
			e.props[PropVersionSeriesCheckedOutID] = Property{Type: TypeID, Value: pwcID}
		}
	}
}

func (f *fakeBinding) CheckOut(_ context.Context, objectID string) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CheckOut"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	series := e.props.String(PropVersionSeriesID)
	if series == "" {
		return nil, cmiserr.FromStatus(http.StatusBadRequest, "fake://"+objectID, "not versionable", "constraint")
	}
	if f.checkedOut(series) != nil {
		return nil, conflict("document %s is already checked out", series)
	}

	src := f.latest(series)
	pwcID := series + ";pwc"
	props := src.props.Clone()
	props[PropObjectID] = Property{Type: TypeID, Value: pwcID}
	props[PropVersionLabel] = Property{Type: TypeString, Value: PWCLabel}
	props[PropIsLatestVersion] = Property{Type: TypeBoolean, Value: false}
	props[PropIsPrivateWorkingCopy] = Property{Type: TypeBoolean, Value: true}
	f.objects[pwcID] = &fakeEntry{props: props, content: src.content, seq: src.seq}
	f.markCheckedOut(series, pwcID)
	return f.snapshot(f.objects[pwcID]), nil
}

func nextLabel(label string, major bool) string {
	parts := strings.SplitN(label, ".", 2)
	maj, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) == 2 {
		minor, _ = strconv.Atoi(parts[1])
	}
	if major {
		return fmt.Sprintf("%d.0", maj+1)
	}
	return fmt.Sprintf("%d.%d", maj, minor+1)
}

func (f *fakeBinding) CheckIn(_ context.Context, pwcID, comment string, major bool) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CheckIn"); err != nil {
		return nil, err
	}
	pwc, err := f.get(pwcID)
	if err != nil {
		return nil, err
	}
	if !pwc.props.Bool(PropIsPrivateWorkingCopy) {
		return nil, cmiserr.FromStatus(http.StatusBadRequest, "fake://"+pwcID, "not a private working copy", "constraint")
	}
	series := pwc.props.String(PropVersionSeriesID)
	prev := f.latest(series)
	label := nextLabel(prev.props.String(PropVersionLabel), major)
	prev.props[PropIsLatestVersion] = Property{Type: TypeBoolean, Value: false}

	id := series + ";" + label
	props := pwc.props.Clone()
	props[PropObjectID] = Property{Type: TypeID, Value: id}
	props[PropVersionLabel] = Property{Type: TypeString, Value: label}
	props[PropIsLatestVersion] = Property{Type: TypeBoolean, Value: true}
	props[PropIsPrivateWorkingCopy] = Property{Type: TypeBoolean, Value: false}
	props["cmis:checkinComment"] = Property{Type: TypeString, Value: comment}
	delete(f.objects, pwcID)
	f.objects[id] = &fakeEntry{props: props, content: pwc.content, seq: pwc.seq}
	f.markCheckedOut(series, "")
	return f.snapshot(f.objects[id]), nil
}

func (f *fakeBinding) CancelCheckOut(_ context.Context, pwcID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CancelCheckOut"); err != nil {
		return err
	}
	pwc, err := f.get(pwcID)
	if err != nil {
		return err
	}
	if !pwc.props.Bool(PropIsPrivateWorkingCopy) {
		return cmiserr.FromStatus(http.StatusBadRequest, "fake://"+pwcID, "not a private working copy", "constraint")
	}
	delete(f.objects, pwcID)
	f.markCheckedOut(pwc.props.String(PropVersionSeriesID), "")
	return nil
}

func (f *fakeBinding) GetAllVersions(_ context.Context, objectID string) ([]*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetAllVersions"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	series := e.props.String(PropVersionSeriesID)
	var versions []*fakeEntry
	for _, v := range f.objects {
		if v.props.String(PropVersionSeriesID) == series {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].props.Bool(PropIsPrivateWorkingCopy) {
			return true
		}
		if versions[j].props.Bool(PropIsPrivateWorkingCopy) {
			return false
		}
		a, _ := decimal.NewFromString(versions[i].props.String(PropVersionLabel))
		b, _ := decimal.NewFromString(versions[j].props.String(PropVersionLabel))
		return a.GreaterThan(b)
	})
	out := make([]*Object, 0, len(versions))
	for _, v := range versions {
		out = append(out, f.snapshot(v))
	}
	return out, nil
}

func (f *fakeBinding) GetObjectParents(_ context.Context, objectID string) ([]*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("GetObjectParents"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	var out []*Object
	for _, id := range f.parents[seriesKey(e)] {
		out = append(out, f.snapshot(f.objects[id]))
	}
	return out, nil
}

func (f *fakeBinding) MoveObject(_ context.Context, objectID, sourceFolderID, targetFolderID string) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("MoveObject"); err != nil {
		return nil, err
	}
	e, err := f.get(objectID)
	if err != nil {
		return nil, err
	}
	if _, err := f.get(targetFolderID); err != nil {
		return nil, err
	}
	key := seriesKey(e)
	parents := f.parents[key]
	idx := -1
	for i, p := range parents {
		if p == sourceFolderID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, cmiserr.FromStatus(http.StatusBadRequest, "fake://"+objectID, "object is not in the source folder", "invalidArgument")
	}
	if f.nameTaken(targetFolderID, e.props.String(PropName)) {
		return nil, conflict("name %s is taken in %s", e.props.String(PropName), targetFolderID)
	}
	next := append([]string(nil), parents...)
	next[idx] = targetFolderID
	f.parents[key] = next
	if isFolder(e) {
		e.props[PropParentID] = Property{Type: TypeID, Value: targetFolderID}
	}
	return f.snapshot(e), nil
}

func (f *fakeBinding) DeleteObject(_ context.Context, objectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteObject"); err != nil {
		return err
	}
	e, err := f.get(objectID)
	if err != nil {
		return err
	}
	if isFolder(e) {
		for _, child := range f.objects {
			for _, p := range f.parents[seriesKey(child)] {
				if p == objectID {
					return conflict("folder %s is not empty", objectID)
				}
			}
		}
		delete(f.objects, objectID)
		delete(f.parents, objectID)
		return nil
	}
	series := e.props.String(PropVersionSeriesID)
	if f.checkedOut(series) != nil {
		return conflict("document %s is checked out", series)
	}
	f.deleteSeries(series)
	return nil
}

func (f *fakeBinding) deleteSeries(series string) {
	for id, v := range f.objects {
		if v.props.String(PropVersionSeriesID) == series {
			delete(f.objects, id)
		}
	}
	delete(f.parents, series)
}

func (f *fakeBinding) DeleteTree(_ context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteTree"); err != nil {
		return err
	}
	if _, err := f.get(folderID); err != nil {
		return err
	}
	f.deleteTree(folderID)
	return nil
}

func (f *fakeBinding) deleteTree(folderID string) {
	for _, child := range f.children(folderID) {
		if isFolder(child) {
			f.deleteTree(child.props.String(PropObjectID))
			continue
		}
		f.deleteSeries(seriesKey(child))
	}
	delete(f.objects, folderID)
	delete(f.parents, folderID)
}

func (f *fakeBinding) children(folderID string) []*fakeEntry {
	var out []*fakeEntry
	for _, e := range f.objects {
		for _, p := range f.parents[seriesKey(e)] {
			if p == folderID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// countObjects returns the number of checked-in objects of the given table.
func (f *fakeBinding) countObjects(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.objects {
		if inTable(e, table) && visible(e) && !e.props.Bool(PropIsPrivateWorkingCopy) {
			n++
		}
	}
	return n
}

func (f *fakeBinding) Query(_ context.Context, statement string, paging Paging) (*QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("Query"); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, statement)

	q, err := parseFakeQuery(statement)
	if err != nil {
		return nil, cmiserr.FromStatus(http.StatusBadRequest, "fake://query", err.Error(), "invalidArgument")
	}

	var matches []*fakeEntry
	for _, e := range f.objects {
		if !inTable(e, q.table) || !visible(e) {
			continue
		}
		if q.inFolder != "" && !f.isChildOf(e, q.inFolder) {
			continue
		}
		if !q.match(e.props) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].seq != matches[j].seq {
			return matches[i].seq < matches[j].seq
		}
		return matches[i].props.String(PropObjectID) < matches[j].props.String(PropObjectID)
	})

	total := len(matches)
	if paging.SkipCount > 0 {
		matches = matches[min(paging.SkipCount, len(matches)):]
	}
	more := false
	if paging.MaxItems > 0 && len(matches) > paging.MaxItems {
		matches = matches[:paging.MaxItems]
		more = true
	}
	result := &QueryResult{NumItems: total, HasMoreItems: more}
	for _, e := range matches {
		result.Objects = append(result.Objects, f.snapshot(e))
	}
	return result, nil
}

func (f *fakeBinding) isChildOf(e *fakeEntry, folderID string) bool {
	for _, p := range f.parents[seriesKey(e)] {
		if p == folderID {
			return true
		}
	}
	return false
}

func visible(e *fakeEntry) bool {
	if e.props.String(PropVersionSeriesID) == "" {
		return true
	}
	return e.props.Bool(PropIsLatestVersion) || e.props.Bool(PropIsPrivateWorkingCopy)
}

func inTable(e *fakeEntry, table string) bool {
	switch table {
	case "cmis:folder", "cmis:document":
		return e.props.String(PropBaseTypeID) == table
	}
	return StripTypePrefix(e.props.String(PropObjectTypeID)) == table
}

type fakePredicate struct {
	property string
	op       string
	values   []string
}

type fakeQuery struct {
	table      string
	inFolder   string
	predicates []fakePredicate
}

var (
	fakeSelect   = regexp.MustCompile(`^SELECT \* FROM (\S+)(?: WHERE (.+))?$`)
	fakeInFolder = regexp.MustCompile(`^IN_FOLDER\('((?:[^'\\]|\\.)*)'\)`)
	fakeIsNull   = regexp.MustCompile(`^(\S+) IS (NOT NULL|NULL)`)
	fakeString   = regexp.MustCompile(`^(\S+) = '((?:[^'\\]|\\.)*)'`)
	fakeNumber   = regexp.MustCompile(`^(\S+) = (-?[0-9.]+)`)
	fakeUnescape = strings.NewReplacer(`\'`, `'`, `\"`, `"`)
)

func parseFakeQuery(statement string) (*fakeQuery, error) {
	m := fakeSelect.FindStringSubmatch(statement)
	if m == nil {
		return nil, fmt.Errorf("unsupported statement %q", statement)
	}
	q := &fakeQuery{table: m[1]}
	rest := m[2]
	for rest != "" {
		var err error
		rest, err = q.parseClause(rest)
		if err != nil {
			return nil, err
		}
		if rest == "" {
			break
		}
		if !strings.HasPrefix(rest, " AND ") {
			return nil, fmt.Errorf("expected AND at %q", rest)
		}
		rest = rest[len(" AND "):]
	}
	return q, nil
}

func (q *fakeQuery) parseClause(s string) (string, error) {
	if m := fakeInFolder.FindStringSubmatch(s); m != nil {
		q.inFolder = fakeUnescape.Replace(m[1])
		return s[len(m[0]):], nil
	}
	if strings.HasPrefix(s, "( ") {
		s = s[2:]
		var group fakePredicate
		for {
			p, rest, err := parseAtom(s)
			if err != nil {
				return "", err
			}
			group.property = p.property
			group.op = "in"
			group.values = append(group.values, p.values...)
			switch {
			case strings.HasPrefix(rest, " OR "):
				s = rest[len(" OR "):]
			case strings.HasPrefix(rest, " )"):
				q.predicates = append(q.predicates, group)
				return rest[len(" )"):], nil
			default:
				return "", fmt.Errorf("unterminated group at %q", rest)
			}
		}
	}
	p, rest, err := parseAtom(s)
	if err != nil {
		return "", err
	}
	q.predicates = append(q.predicates, p)
	return rest, nil
}

func parseAtom(s string) (fakePredicate, string, error) {
	if m := fakeIsNull.FindStringSubmatch(s); m != nil {
		op := "null"
		if m[2] == "NOT NULL" {
			op = "notnull"
		}
		return fakePredicate{property: m[1], op: op}, s[len(m[0]):], nil
	}
	if m := fakeString.FindStringSubmatch(s); m != nil {
		return fakePredicate{property: m[1], op: "eq", values: []string{fakeUnescape.Replace(m[2])}}, s[len(m[0]):], nil
	}
	if m := fakeNumber.FindStringSubmatch(s); m != nil {
		return fakePredicate{property: m[1], op: "num", values: []string{m[2]}}, s[len(m[0]):], nil
	}
	return fakePredicate{}, "", fmt.Errorf("unsupported predicate at %q", s)
}

func (q *fakeQuery) match(props Properties) bool {
	for _, p := range q.predicates {
		prop, ok := props[p.property]
		switch p.op {
		case "null":
			if ok && !prop.IsZero() {
				return false
			}
		case "notnull":
			if !ok || prop.IsZero() {
				return false
			}
		case "num":
			want, _ := decimal.NewFromString(p.values[0])
			if !ok || !props.Decimal(p.property).Equal(want) {
				return false
			}
		default:
			found := false
			for _, v := range p.values {
				if ok && prop.String() == v {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
