package browser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drccmis/pkg/cmis"
)

type jsonProperty struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonObject struct {
	Properties map[string]jsonProperty `json:"properties"`
}

type jsonParent struct {
	Object jsonObject `json:"object"`
}

type jsonQueryResult struct {
	Results      []jsonObject `json:"results"`
	NumItems     int          `json:"numItems"`
	HasMoreItems bool         `json:"hasMoreItems"`
}

type jsonRepositoryInfo struct {
	RepositoryID          string                 `json:"repositoryId"`
	RepositoryName        string                 `json:"repositoryName"`
	RepositoryDescription string                 `json:"repositoryDescription"`
	VendorName            string                 `json:"vendorName"`
	ProductName           string                 `json:"productName"`
	ProductVersion        string                 `json:"productVersion"`
	RootFolderID          string                 `json:"rootFolderId"`
	CMISVersionSupported  string                 `json:"cmisVersionSupported"`
	Capabilities          map[string]interface{} `json:"capabilities"`
}

// decoder turns browser binding JSON into objects. Datetimes arrive as epoch
// milliseconds and are converted to loc.
type decoder struct {
	loc *time.Location
}

func (d decoder) object(o jsonObject) (*cmis.Object, error) {
	props := make(cmis.Properties, len(o.Properties))
	for id, p := range o.Properties {
		if p.ID != "" {
			id = p.ID
		}
		prop, err := d.property(p)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", id, err)
		}
		props[id] = prop
	}
	return cmis.NewObject(props), nil
}

func (d decoder) objects(list []jsonObject) ([]*cmis.Object, error) {
	objects := make([]*cmis.Object, 0, len(list))
	for _, o := range list {
		obj, err := d.object(o)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (d decoder) property(p jsonProperty) (cmis.Property, error) {
	t := cmis.PropertyType(p.Type)
	if t == "" {
		t = cmis.TypeString
	}

	raw, err := singleValue(p.Value)
	if err != nil {
		return cmis.Property{}, err
	}
	if raw == nil {
		return cmis.Property{Type: t}, nil
	}

	switch v := raw.(type) {
	case json.Number:
		switch t {
		case cmis.TypeDateTime:
			ms, err := v.Int64()
			if err != nil {
				return cmis.Property{}, fmt.Errorf("parse epoch %q: %w", v, err)
			}
			return cmis.Property{Type: t, Value: time.UnixMilli(ms).In(d.loc)}, nil
		case cmis.TypeDecimal:
			dec, err := decimal.NewFromString(v.String())
			if err != nil {
				return cmis.Property{}, fmt.Errorf("parse decimal %q: %w", v, err)
			}
			return cmis.Property{Type: t, Value: dec}, nil
		default:
			return cmis.ParseProperty(t, v.String())
		}
	case bool:
		return cmis.Property{Type: t, Value: v}, nil
	case string:
		prop, err := cmis.ParseProperty(t, v)
		if err != nil {
			return cmis.Property{}, err
		}
		if ts, ok := prop.Value.(time.Time); ok {
			prop.Value = ts.In(d.loc)
		}
		return prop, nil
	default:
		return cmis.Property{}, fmt.Errorf("unexpected value %T", raw)
	}
}

// singleValue decodes a JSON value; multi-valued properties yield their first
// value.
func singleValue(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	}
	return v, nil
}

func repositoryInfo(r jsonRepositoryInfo) *cmis.RepositoryInfo {
	info := &cmis.RepositoryInfo{
		ID:                   r.RepositoryID,
		Name:                 r.RepositoryName,
		Description:          r.RepositoryDescription,
		VendorName:           r.VendorName,
		ProductName:          r.ProductName,
		ProductVersion:       r.ProductVersion,
		RootFolderID:         r.RootFolderID,
		CMISVersionSupported: r.CMISVersionSupported,
		Capabilities:         make(map[string]string, len(r.Capabilities)),
	}
	for name, value := range r.Capabilities {
		info.Capabilities[strings.TrimPrefix(name, "capability")] = fmt.Sprintf("%v", value)
	}
	return info
}

// setProperties writes props as propertyId[n]/propertyValue[n] pairs, with
// cmis:name and cmis:objectTypeId first. Properties listed in skip are left
// out; empty values are sent as empty strings.
func setProperties(form url.Values, props cmis.Properties, skip ...string) {
	skipped := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipped[id] = true
	}

	ids := make([]string, 0, len(props))
	for id := range props {
		if id != cmis.PropName && id != cmis.PropObjectTypeID && !skipped[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, first := range []string{cmis.PropObjectTypeID, cmis.PropName} {
		if props.Has(first) && !skipped[first] {
			ids = append([]string{first}, ids...)
		}
	}

	for n, id := range ids {
		idx := strconv.Itoa(n)
		form.Set("propertyId["+idx+"]", id)
		form.Set("propertyValue["+idx+"]", props[id].String())
	}
}
