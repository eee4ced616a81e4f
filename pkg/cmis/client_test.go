package cmis

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmiserr "drccmis/pkg/errors"
)

var testNow = time.Date(2020, 3, 7, 10, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T, configure ...func(*Options)) (*Client, *fakeBinding) {
	t.Helper()
	return newTestClientWith(t, newFakeBinding(), configure...)
}

func newTestClientWith(t *testing.T, fake *fakeBinding, configure ...func(*Options)) (*Client, *fakeBinding) {
	t.Helper()
	opts := Options{
		Logger: log.NewStdLogger(io.Discard),
		Now:    func() time.Time { return testNow },
	}
	for _, fn := range configure {
		fn(&opts)
	}
	client, err := NewClient(fake, opts)
	require.NoError(t, err)
	return client, fake
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapCache) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type brokenCache struct{}

func (brokenCache) GetBytes(context.Context, string) ([]byte, error) {
	return nil, stderrors.New("connection refused")
}

func (brokenCache) SetBytes(context.Context, string, []byte, time.Duration) error {
	return stderrors.New("connection refused")
}

const documentsAPI = "https://openzaak.utrechtproeftuin.nl/documenten/api/v1/enkelvoudiginformatieobjecten/"

func createDocument(t *testing.T, client *Client, identification string, data Data) *Document {
	t.Helper()
	if data == nil {
		data = Data{}
	}
	if _, ok := data["titel"]; !ok {
		data["titel"] = "detailed summary"
	}
	doc, err := client.CreateDocument(context.Background(), identification, "159351741", data, strings.NewReader("some file content"))
	require.NoError(t, err)
	return doc
}

func documentURL(doc *Document) string { return documentsAPI + doc.UUID }

func testZaak(id string) (*Zaak, *ZaakType) {
	return &Zaak{
			URL:             "https://openzaak.utrechtproeftuin.nl/zaken/api/v1/zaken/" + id,
			Identificatie:   id,
			Zaaktype:        "https://openzaak.utrechtproeftuin.nl/catalogi/api/v1/zaaktypen/zt-1",
			Bronorganisatie: "159351741",
		}, &ZaakType{
			URL:           "https://openzaak.utrechtproeftuin.nl/catalogi/api/v1/zaaktypen/zt-1",
			Identificatie: "ZT-1",
			Omschrijving:  "melding",
		}
}

func relateToZaak(t *testing.T, client *Client, doc *Document, zaakID string) *ObjectInformatieObject {
	t.Helper()
	zaak, zaaktype := testZaak(zaakID)
	oio, err := client.CreateOIO(context.Background(), OIO{
		Informatieobject: documentURL(doc),
		ObjectType:       OIOZaak,
		Zaak:             zaak.URL,
	}, zaak, zaaktype)
	require.NoError(t, err)
	return oio
}

func folderPath(t *testing.T, client *Client, obj *Object) []string {
	t.Helper()
	ctx := context.Background()
	var names []string
	current := obj
	for {
		parents, err := client.Parents(ctx, current)
		require.NoError(t, err)
		if len(parents) == 0 {
			break
		}
		names = append([]string{parents[0].Name()}, names...)
		current = parents[0].Object
	}
	return names
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(nil, Options{})
	assert.True(t, stderrors.Is(err, cmiserr.ErrInvalidBinding))

	_, err = NewClient(newFakeBinding(), Options{ZaakFolderPath: "/DRC/{{ year }}/"})
	assert.True(t, stderrors.Is(err, cmiserr.ErrInvalidFolderPath))
	assert.Contains(t, err.Error(), "zaak folder path")

	_, err = NewClient(newFakeBinding(), Options{OtherFolderPath: "/DRC/{{ zaak }}/"})
	assert.True(t, stderrors.Is(err, cmiserr.ErrInvalidFolderPath))
}

func TestDocumentLifecycle(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	doc := createDocument(t, client, "DOC-1", Data{"bestandsnaam": "summary.txt"})
	assert.Equal(t, "DOC-1", doc.Identificatie)
	assert.Equal(t, "159351741", doc.Bronorganisatie)
	assert.Equal(t, "1.0", doc.VersionLabel())
	assert.Equal(t, int64(1), doc.Versie.IntPart())
	assert.NotEmpty(t, doc.UUID)
	assert.True(t, strings.HasPrefix(doc.Name(), "detailed summary-"))
	assert.Equal(t, []string{"Company Home", "DRC", "2020", "3", "7"}, folderPath(t, client, doc.Object))

	fetched, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID(), fetched.ID())
	assert.True(t, strings.HasPrefix(fetched.Properties.String(PropContentStreamMimeType), "text/plain"))

	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	_, err = client.UpdateDocument(ctx, doc.UUID, "lock-1", Data{"titel": "updated title"}, strings.NewReader("new content"))
	require.NoError(t, err)

	unlocked, err := client.UnlockDocument(ctx, doc.UUID, "lock-1", false)
	require.NoError(t, err)
	assert.Equal(t, "2.0", unlocked.VersionLabel())
	assert.Equal(t, "updated title", unlocked.Titel)
	assert.Empty(t, unlocked.Lock)
	assert.Equal(t, DefaultCheckinComment, unlocked.Properties.String("cmis:checkinComment"))

	latest, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, "2.0", latest.VersionLabel())
	content, err := client.GetContentStream(ctx, latest)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(content))

	versions, err := client.GetAllVersions(ctx, latest)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "2.0", versions[0].VersionLabel())
	assert.Equal(t, 1, fake.countObjects("drc:document"))
}

func TestCreateDocumentIdentificationIsUnique(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	createDocument(t, client, "DOC-1", nil)

	_, err := client.CreateDocument(ctx, "DOC-1", "159351741", Data{"titel": "again"}, nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentExists))

	other, err := client.CreateDocument(ctx, "DOC-1", "111222333", Data{"titel": "other org"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "111222333", other.Bronorganisatie)
}

func TestCreateDocumentWithoutContent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	doc, err := client.CreateDocument(ctx, "DOC-1", "159351741", Data{}, nil)
	require.NoError(t, err)
	assert.Len(t, doc.Name(), 6)
	assert.Equal(t, DefaultMimeType, doc.Properties.String(PropContentStreamMimeType))

	content, err := client.GetContentStream(ctx, doc)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestGetDocumentNotFound(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.GetDocument(ctx, "9c0f9e54-1ce3-4c39-a63e-d3f1e4a86d76")
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotFound))
	assert.True(t, cmiserr.IsNotFound(err))

	_, err = client.GetDocument(ctx, "")
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotFound))
}

func TestLockDocumentTwice(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	err := client.LockDocument(ctx, doc.UUID, "lock-2")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentLocked))
}

func TestUnlockDocument(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	_, err := client.UnlockDocument(ctx, doc.UUID, "wrong", false)
	assert.True(t, stderrors.Is(err, cmiserr.ErrLockDidNotMatch))

	unlocked, err := client.UnlockDocument(ctx, doc.UUID, "wrong", true)
	require.NoError(t, err)
	assert.Equal(t, "2.0", unlocked.VersionLabel())
	assert.False(t, unlocked.IsVersionSeriesCheckedOut())

	_, err = client.UnlockDocument(ctx, doc.UUID, "lock-1", false)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotLocked))
}

func TestUnlockDocumentUsesConfiguredPolicy(t *testing.T) {
	client, _ := newTestClient(t, func(o *Options) {
		o.VersionPolicy = &VersionPolicy{MajorCheckin: false}
	})
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	unlocked, err := client.UnlockDocument(ctx, doc.UUID, "lock-1", false)
	require.NoError(t, err)
	assert.Equal(t, "1.1", unlocked.VersionLabel())
	assert.Equal(t, DefaultCheckinComment, unlocked.Properties.String("cmis:checkinComment"))
}

func TestUpdateDocumentRequiresLock(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	_, err := client.UpdateDocument(ctx, doc.UUID, "lock-1", Data{"titel": "x"}, nil)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotLocked))

	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	_, err = client.UpdateDocument(ctx, doc.UUID, "lock-2", Data{"titel": "x"}, nil)
	assert.True(t, stderrors.Is(err, cmiserr.ErrLockConflict))

	updated, err := client.UpdateDocument(ctx, doc.UUID, "lock-1", Data{"titel": "x", "uuid": "ignored"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", updated.Titel)
	assert.Equal(t, doc.UUID, updated.UUID)
	assert.True(t, updated.IsPrivateWorkingCopy())
}

func TestUpdateDocumentOnCheckoutWithoutLock(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	_, err := client.Checkout(ctx, doc)
	require.NoError(t, err)

	_, err = client.UpdateDocument(ctx, doc.UUID, "lock-1", Data{"titel": "x"}, nil)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotLocked))
}

func TestDeleteDocumentCancelsCheckout(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	require.NoError(t, client.LockDocument(ctx, doc.UUID, "lock-1"))

	require.NoError(t, client.DeleteDocument(ctx, doc.UUID))
	assert.Equal(t, 1, fake.count("CancelCheckOut"))
	assert.Equal(t, 0, fake.countObjects("drc:document"))

	_, err := client.GetDocument(ctx, doc.UUID)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotFound))
}

func TestFilterDocumentsEscapesValues(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", Data{"titel": "Jan's \"notes\""})
	createDocument(t, client, "DOC-2", Data{"titel": "other"})

	fake.resetCalls()
	docs, err := client.FilterDocuments(ctx, Data{"titel": "Jan's \"notes\""})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.UUID, docs[0].UUID)
	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], `drc:document__titel = 'Jan\'s \"notes\"'`)
}

func TestGetOrCreateFolderIsIdempotent(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	first, err := client.GetOrCreateOtherFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, fake.count("CreateFolder"))

	second, err := client.GetOrCreateOtherFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 4, fake.count("CreateFolder"))

	root, err := client.RootFolder(ctx)
	require.NoError(t, err)
	_, err = client.GetFolderByName(ctx, "missing", root)
	assert.True(t, stderrors.Is(err, cmiserr.ErrFolderNotFound))
}

func TestDateFoldersUseConfiguredTimeZone(t *testing.T) {
	client, _ := newTestClient(t, func(o *Options) {
		o.TimeZone = time.FixedZone("CET", 3600)
		o.Now = func() time.Time { return time.Date(2020, 12, 31, 23, 30, 0, 0, time.UTC) }
	})

	folder, err := client.GetOrCreateOtherFolder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "2021", "1"}, folderPath(t, client, folder.Object))
	assert.Equal(t, "1", folder.Name())
}

func TestZaakFolderCarriesZaakProperties(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	zaak, zaaktype := testZaak("ZAAK-1")

	folder, err := client.GetOrCreateZaakFolder(ctx, *zaaktype, *zaak)
	require.NoError(t, err)
	assert.Equal(t, "zaak-ZAAK-1", folder.Name())
	assert.Equal(t, "drc:zaakfolder", folder.ObjectTypeID())
	assert.Equal(t, []string{"Company Home", "DRC", "zaaktype-melding-ZT-1"}, folderPath(t, client, folder.Object))

	byURL, err := client.ZaakFolderByURL(ctx, zaak.URL)
	require.NoError(t, err)
	assert.Equal(t, folder.ID(), byURL.ID())
	assert.Equal(t, "ZAAK-1", byURL.Identificatie)
	assert.Equal(t, zaak.Zaaktype, byURL.Zaaktype)
}

func TestGebruiksrechten(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	gr, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{
		Informatieobject:        documentURL(doc),
		OmschrijvingVoorwaarden: "public",
		Startdatum:              &start,
	})
	require.NoError(t, err)
	assert.Equal(t, documentURL(doc), gr.Informatieobject)
	require.NotNil(t, gr.Startdatum)
	assert.True(t, start.Equal(*gr.Startdatum))
	assert.Equal(t, []string{"Company Home", "DRC", "2020", "3", "7", RelatedDataFolder}, folderPath(t, client, gr.Object))

	updated, err := client.UpdateGebruiksrechten(ctx, gr.UUID, Data{"omschrijving_voorwaarden": "restricted"})
	require.NoError(t, err)
	assert.Equal(t, "restricted", updated.OmschrijvingVoorwaarden)
	assert.Equal(t, gr.UUID, updated.UUID)

	require.NoError(t, client.DeleteContentObject(ctx, gr.UUID, ObjectGebruiksrechten))
	_, err = client.GetGebruiksrechten(ctx, gr.UUID)
	assert.True(t, cmiserr.IsNotFound(err))

	_, err = client.CreateContentObject(ctx, ObjectDocument, Data{}, nil)
	assert.Error(t, err)
}

// 空 uuid 不能命中任意对象
func TestContentObjectRequiresUUID(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	gr, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{Informatieobject: documentURL(doc)})
	require.NoError(t, err)
	relateToZaak(t, client, doc, "ZAAK-1")

	err = client.DeleteContentObject(ctx, "", ObjectGebruiksrechten)
	assert.True(t, stderrors.Is(err, cmiserr.ErrDocumentNotFound))
	_, err = client.GetGebruiksrechten(ctx, "")
	assert.True(t, cmiserr.IsNotFound(err))
	_, err = client.UpdateGebruiksrechten(ctx, "", Data{"omschrijving_voorwaarden": "restricted"})
	assert.True(t, cmiserr.IsNotFound(err))

	_, err = client.GetOIO(ctx, "")
	assert.True(t, cmiserr.IsNotFound(err))
	assert.True(t, cmiserr.IsNotFound(client.DeleteOIO(ctx, "")))
	assert.True(t, cmiserr.IsNotFound(client.DeleteContentObject(ctx, "", ObjectOIO)))

	_, err = client.GetGebruiksrechten(ctx, gr.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.countObjects("drc:gebruiksrechten"))
	assert.Equal(t, 1, fake.countObjects("drc:oio"))
}

func TestCreateOIOMovesDocumentIntoZaakFolder(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	gr, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{Informatieobject: documentURL(doc)})
	require.NoError(t, err)

	oio := relateToZaak(t, client, doc, "ZAAK-1")
	assert.Equal(t, OIOZaak, oio.ObjectType)
	assert.Equal(t, documentURL(doc), oio.Informatieobject)

	zaakPath := []string{"Company Home", "DRC", "zaaktype-melding-ZT-1", "zaak-ZAAK-1"}
	moved, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, zaakPath, folderPath(t, client, moved.Object))

	related := append(append([]string{}, zaakPath...), RelatedDataFolder)
	assert.Equal(t, related, folderPath(t, client, oio.Object))

	movedGR, err := client.GetGebruiksrechten(ctx, gr.UUID)
	require.NoError(t, err)
	assert.Equal(t, related, folderPath(t, client, movedGR.Object))
}

func TestCreateOIOSameZaakTwice(t *testing.T) {
	client, fake := newTestClient(t)
	doc := createDocument(t, client, "DOC-1", nil)

	first := relateToZaak(t, client, doc, "ZAAK-1")
	second := relateToZaak(t, client, doc, "ZAAK-1")

	assert.Equal(t, first.UUID, second.UUID)
	assert.Equal(t, 1, fake.countObjects("drc:document"))
	assert.Equal(t, 1, fake.countObjects("drc:oio"))
}

func TestCreateOIOCopiesDocumentForSecondZaak(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	_, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{Informatieobject: documentURL(doc)})
	require.NoError(t, err)

	relateToZaak(t, client, doc, "ZAAK-1")
	relateToZaak(t, client, doc, "ZAAK-2")

	assert.Equal(t, 2, fake.countObjects("drc:document"))
	assert.Equal(t, 2, fake.countObjects("drc:gebruiksrechten"))

	copies, err := client.FilterDocuments(ctx, Data{"kopie_van": doc.UUID})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	cp := copies[0]
	assert.NotEqual(t, doc.UUID, cp.UUID)
	assert.Equal(t, "DOC-1", cp.Identificatie)
	assert.Equal(t, "detailed summary - copy", cp.Titel)
	assert.Equal(t, []string{"Company Home", "DRC", "zaaktype-melding-ZT-1", "zaak-ZAAK-2"}, folderPath(t, client, cp.Object))

	content, err := client.GetContentStream(ctx, cp)
	require.NoError(t, err)
	assert.Equal(t, "some file content", string(content))

	original, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "zaaktype-melding-ZT-1", "zaak-ZAAK-1"}, folderPath(t, client, original.Object))

	grFilter, err := client.Filter(ObjectGebruiksrechten, "kopie_van", NotNull)
	require.NoError(t, err)
	grCopies, err := client.FilterGebruiksrechten(ctx, grFilter)
	require.NoError(t, err)
	require.Len(t, grCopies, 1)
	assert.Equal(t,
		[]string{"Company Home", "DRC", "zaaktype-melding-ZT-1", "zaak-ZAAK-2", RelatedDataFolder},
		folderPath(t, client, grCopies[0].Object))
}

func TestDeleteOIOMovesDocumentBack(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	gr, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{Informatieobject: documentURL(doc)})
	require.NoError(t, err)
	oio := relateToZaak(t, client, doc, "ZAAK-1")

	require.NoError(t, client.DeleteContentObject(ctx, oio.UUID, ObjectOIO))

	assert.Equal(t, 0, fake.countObjects("drc:oio"))
	moved, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "2020", "3", "7"}, folderPath(t, client, moved.Object))

	movedGR, err := client.GetGebruiksrechten(ctx, gr.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "2020", "3", "7", RelatedDataFolder}, folderPath(t, client, movedGR.Object))
}

func TestDeleteOIOOfCopyDeletesCopy(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	_, err := client.CreateGebruiksrechten(ctx, GebruiksrechtenInput{Informatieobject: documentURL(doc)})
	require.NoError(t, err)

	relateToZaak(t, client, doc, "ZAAK-1")
	second := relateToZaak(t, client, doc, "ZAAK-2")

	require.NoError(t, client.DeleteOIO(ctx, second.UUID))

	assert.Equal(t, 1, fake.countObjects("drc:document"))
	assert.Equal(t, 1, fake.countObjects("drc:gebruiksrechten"))
	assert.Equal(t, 1, fake.countObjects("drc:oio"))

	original, err := client.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "zaaktype-melding-ZT-1", "zaak-ZAAK-1"}, folderPath(t, client, original.Object))
}

func TestBesluitRelation(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	oio, err := client.CreateOIO(ctx, OIO{
		Informatieobject: documentURL(doc),
		ObjectType:       OIOBesluit,
		Besluit:          "https://openzaak.utrechtproeftuin.nl/besluiten/api/v1/besluiten/b-1",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Company Home", "DRC", "2020", "3", "7", RelatedDataFolder}, folderPath(t, client, oio.Object))

	fake.resetCalls()
	require.NoError(t, client.DeleteOIO(ctx, oio.UUID))
	assert.Equal(t, 0, fake.count("MoveObject"))
	assert.Equal(t, 1, fake.countObjects("drc:document"))

	_, err = client.CreateOIO(ctx, OIO{Informatieobject: documentURL(doc), ObjectType: "verzoek"}, nil, nil)
	assert.Error(t, err)
}

func TestFilterOIOsCachesRelatedDocuments(t *testing.T) {
	cache := newMapCache()
	client, fake := newTestClient(t, func(o *Options) { o.Cache = cache })
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	relateToZaak(t, client, doc, "ZAAK-1")

	f, err := client.Filter(ObjectOIO, "informatieobject", documentURL(doc))
	require.NoError(t, err)
	oios, err := client.FilterOIOs(ctx, f)
	require.NoError(t, err)
	require.Len(t, oios, 1)
	assert.NotNil(t, cache.data[doc.UUID])

	fake.resetCalls()
	docs, err := client.QueryDocuments(ctx, Eq(client.prop(ObjectDocument, "uuid"), doc.UUID))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 0, fake.count("Query"))
	assert.Equal(t, doc.UUID, docs[0].UUID)
	assert.Equal(t, doc.Identificatie, docs[0].Identificatie)
	assert.True(t, doc.Versie.Equal(docs[0].Versie))
	assert.Equal(t, doc.Creatiedatum, docs[0].Creatiedatum)
}

func TestFilterOIOsWithoutCache(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	relateToZaak(t, client, doc, "ZAAK-1")

	fake.resetCalls()
	_, err := client.FilterOIOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("Query"))
}

func TestCacheRelatedDocumentsWithoutOIOs(t *testing.T) {
	client, fake := newTestClient(t, func(o *Options) { o.Cache = newMapCache() })

	fake.resetCalls()
	client.CacheRelatedDocuments(context.Background(), nil)
	assert.Equal(t, 0, fake.count("Query"))
}

func TestBrokenCacheFallsBackToQuery(t *testing.T) {
	client, fake := newTestClient(t, func(o *Options) { o.Cache = brokenCache{} })
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	relateToZaak(t, client, doc, "ZAAK-1")

	_, err := client.FilterOIOs(ctx)
	require.NoError(t, err)

	fake.resetCalls()
	docs, err := client.QueryDocuments(ctx, Eq(client.prop(ObjectDocument, "uuid"), doc.UUID))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, fake.count("Query"))
}

func TestURLShortening(t *testing.T) {
	fake := newFakeBinding()
	fake.shorten = true
	client, _ := newTestClientWith(t, fake, func(o *Options) {
		o.URLMappings = []URLMapping{
			{LongPattern: "https://openzaak.utrechtproeftuin.nl/", ShortPattern: "https://oz.nl/"},
		}
	})
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	oio := relateToZaak(t, client, doc, "ZAAK-1")
	assert.Equal(t, "https://oz.nl/zaken/api/v1/zaken/ZAAK-1", oio.Properties.String("drc:oio__zaak"))
	assert.Equal(t, "https://openzaak.utrechtproeftuin.nl/zaken/api/v1/zaken/ZAAK-1", oio.Zaak)

	f, err := client.Filter(ObjectOIO, "zaak", oio.Zaak)
	require.NoError(t, err)
	found, err := client.FilterOIOs(ctx, f)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, oio.UUID, found[0].UUID)

	plain, _ := newTestClient(t, func(o *Options) {
		o.URLMappings = []URLMapping{{LongPattern: "https://openzaak.utrechtproeftuin.nl/", ShortPattern: "https://oz.nl/"}}
	})
	assert.False(t, plain.Codec().URLs.Enabled())
}

func TestAlfrescoObjectTypePrefix(t *testing.T) {
	fake := newFakeBinding()
	fake.vendor = "Alfresco"
	client, _ := newTestClientWith(t, fake)
	ctx := context.Background()

	prefix, err := client.ObjectTypeIDPrefix(ctx, ObjectZaakFolder)
	require.NoError(t, err)
	assert.Equal(t, "F:", prefix)
	prefix, err = client.ObjectTypeIDPrefix(ctx, ObjectOIO)
	require.NoError(t, err)
	assert.Equal(t, "D:", prefix)

	doc := createDocument(t, client, "DOC-1", nil)
	assert.Equal(t, "D:drc:document", doc.ObjectTypeID())

	zaak, zaaktype := testZaak("ZAAK-1")
	first, err := client.GetOrCreateZaakFolder(ctx, *zaaktype, *zaak)
	require.NoError(t, err)
	assert.Equal(t, "F:drc:zaakfolder", first.ObjectTypeID())
	second, err := client.GetOrCreateZaakFolder(ctx, *zaaktype, *zaak)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())

	other, _ := newTestClient(t)
	prefix, err = other.ObjectTypeIDPrefix(ctx, ObjectDocument)
	require.NoError(t, err)
	assert.Empty(t, prefix)
}

func TestDeleteFoldersInBase(t *testing.T) {
	client, fake := newTestClient(t, func(o *Options) {
		o.ZaakFolderPath = "/Zaken/{{ zaaktype }}/{{ zaak }}/"
	})
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)
	relateToZaak(t, client, doc, "ZAAK-1")

	require.NoError(t, client.DeleteFoldersInBase(ctx))
	assert.Equal(t, 0, fake.countObjects("drc:document"))
	// only the root folder is left
	assert.Equal(t, 1, fake.countObjects("cmis:folder"))

	require.NoError(t, client.DeleteFoldersInBase(ctx))
}

func TestRepositoryInfoIsFetchedOnce(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	_, err := client.RootFolderID(ctx)
	require.NoError(t, err)
	vendor, err := client.Vendor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fake", vendor)
	assert.Equal(t, 1, fake.count("RepositoryInfo"))
}

func TestSetContentStreamGuessesMimeType(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	doc := createDocument(t, client, "DOC-1", nil)

	updated, err := client.SetContentStream(ctx, doc, bytes.NewReader([]byte("%PDF")), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", updated.Properties.String(PropContentStreamMimeType))
	assert.Equal(t, "scan.pdf", updated.Properties.String(PropContentStreamFileName))
}
