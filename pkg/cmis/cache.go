package cmis

import (
	"context"
	"encoding/json"
	"fmt"

	"drccmis/pkg/monitoring"
)

type cachedProperty struct {
	Type  PropertyType `json:"type"`
	Value *string      `json:"value"`
}

func encodeObject(obj *Object) ([]byte, error) {
	out := make(map[string]cachedProperty, len(obj.Properties))
	for id, prop := range obj.Properties {
		entry := cachedProperty{Type: prop.Type}
		if prop.Value != nil {
			s := prop.String()
			entry.Value = &s
		}
		out[id] = entry
	}
	return json.Marshal(out)
}

func decodeObject(raw []byte) (*Object, error) {
	var in map[string]cachedProperty
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	props := make(Properties, len(in))
	for id, entry := range in {
		if entry.Value == nil {
			props[id] = Property{Type: entry.Type}
			continue
		}
		prop, err := ParseProperty(entry.Type, *entry.Value)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", id, err)
		}
		props[id] = prop
	}
	return NewObject(props), nil
}

// CacheRelatedDocuments fetches the documents of the oios in a single query and
// stores them in the cache by uuid. Cache failures are logged and ignored.
func (c *Client) CacheRelatedDocuments(ctx context.Context, oios []*ObjectInformatieObject) {
	if c.cache == nil || len(oios) == 0 {
		return
	}
	seen := make(map[string]bool, len(oios))
	uuids := make([]string, 0, len(oios))
	for _, oio := range oios {
		id := UUIDFromURL(oio.Informatieobject)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uuids = append(uuids, id)
	}
	if len(uuids) == 0 {
		return
	}

	objects, err := c.Query(ctx, ObjectDocument, Eq(c.prop(ObjectDocument, "uuid"), uuids))
	if err != nil {
		c.log.WithContext(ctx).Warnf("cache related documents: %v", err)
		return
	}
	for _, obj := range objects {
		if obj.IsPrivateWorkingCopy() {
			continue
		}
		key := c.codec.Document(obj).UUID
		raw, err := encodeObject(obj)
		if err != nil {
			c.log.WithContext(ctx).Warnf("encode document %s: %v", key, err)
			continue
		}
		if err := c.cache.SetBytes(ctx, key, raw, c.cacheTTL); err != nil {
			c.log.WithContext(ctx).Warnf("cache document %s: %v", key, err)
		}
	}
}

func (c *Client) cachedDocument(ctx context.Context, documentUUID string) *Document {
	raw, err := c.cache.GetBytes(ctx, documentUUID)
	if err != nil {
		monitoring.ObserveCacheLookup(monitoring.CacheError)
		c.log.WithContext(ctx).Warnf("read cached document %s: %v", documentUUID, err)
		return nil
	}
	if raw == nil {
		monitoring.ObserveCacheLookup(monitoring.CacheMiss)
		return nil
	}
	obj, err := decodeObject(raw)
	if err != nil {
		monitoring.ObserveCacheLookup(monitoring.CacheError)
		c.log.WithContext(ctx).Warnf("decode cached document %s: %v", documentUUID, err)
		return nil
	}
	monitoring.ObserveCacheLookup(monitoring.CacheHit)
	return c.codec.Document(obj)
}

// QueryDocuments queries documents. A lookup on nothing but the uuid is served
// from the cache when the document is cached.
func (c *Client) QueryDocuments(ctx context.Context, filters ...Filter) ([]*Document, error) {
	if c.cache != nil && len(filters) == 1 && filters[0].Property == c.prop(ObjectDocument, "uuid") {
		if id, ok := filters[0].Value.(string); ok && id != "" {
			if doc := c.cachedDocument(ctx, id); doc != nil {
				return []*Document{doc}, nil
			}
		}
	}

	objects, err := c.Query(ctx, ObjectDocument, filters...)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, c.codec.Document(obj))
	}
	return docs, nil
}
