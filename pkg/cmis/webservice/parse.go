package webservice

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"drccmis/pkg/cmis"
)

// node is an XML element reduced to its local name, attributes, children and
// text.
type node struct {
	name     string
	attrs    map[string]string
	children []*node
	text     string
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{name: "#document"}
	stack := []*node{root}
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n := stack[len(stack)-1]
			if len(n.children) == 0 {
				n.text = strings.TrimSpace(text.String())
			}
			text.Reset()
			stack = stack[:len(stack)-1]
		}
	}
	return root, nil
}

// child returns the first direct child called name.
func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find returns the first descendant called name, depth first.
func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant called name, depth first.
func (n *node) findAll(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// response is a parsed SOAP answer to one action.
type response struct {
	root   *node
	action string
	loc    *time.Location
}

func parseResponse(body []byte, action string, loc *time.Location) (*response, error) {
	env, ok := extractEnvelope(body)
	if !ok {
		return nil, fmt.Errorf("no SOAP envelope in %s response", action)
	}
	root, err := parseTree(env)
	if err != nil {
		return nil, err
	}
	return &response{root: root, action: action, loc: loc}, nil
}

func (r *response) actionNode() *node {
	if n := r.root.find(r.action + "Response"); n != nil {
		return n
	}
	return &node{}
}

// objectID returns the objectId a create, update or versioning action answers
// with.
func (r *response) objectID() string {
	if n := r.actionNode().child("objectId"); n != nil {
		return n.text
	}
	return ""
}

// objects returns the objects of an object, objects or parents response.
func (r *response) objects() ([]*cmis.Object, error) {
	var out []*cmis.Object
	add := func(n *node) error {
		obj, err := r.object(n)
		if err != nil {
			return err
		}
		out = append(out, obj)
		return nil
	}

	for _, c := range r.actionNode().children {
		switch c.name {
		case "objectId":
			out = append(out, cmis.NewObject(cmis.Properties{
				cmis.PropObjectID: {Type: cmis.TypeID, Value: c.text},
			}))
		case "object":
			if err := add(c); err != nil {
				return nil, err
			}
		case "objects", "parents":
			if inner := c.findAll("objects"); len(inner) > 0 {
				for _, o := range inner {
					if o.find("properties") == nil {
						continue
					}
					if err := add(o); err != nil {
						return nil, err
					}
				}
			} else if c.find("properties") != nil {
				if err := add(c); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func (r *response) object(n *node) (*cmis.Object, error) {
	props := cmis.Properties{}
	list := n.find("properties")
	if list == nil {
		return cmis.NewObject(props), nil
	}
	for _, p := range list.children {
		id, ok := p.attrs["propertyDefinitionId"]
		if !ok {
			continue
		}
		t := cmis.PropertyTypeFromSOAP(p.name)
		value := p.child("value")
		if value == nil {
			props[id] = cmis.Property{Type: t}
			continue
		}
		prop, err := cmis.ParseProperty(t, value.text)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", id, err)
		}
		if ts, ok := prop.Value.(time.Time); ok {
			prop.Value = ts.In(r.loc)
		}
		props[id] = prop
	}
	return cmis.NewObject(props), nil
}

func (r *response) numItems() int {
	n := r.root.find("numItems")
	if n == nil {
		return 0
	}
	v, _ := strconv.Atoi(n.text)
	return v
}

func (r *response) hasMoreItems() bool {
	n := r.root.find("hasMoreItems")
	return n != nil && n.text == "true"
}

func (r *response) repositoryIDs() []string {
	var ids []string
	for _, n := range r.root.findAll("repositoryId") {
		if n.text != "" {
			ids = append(ids, n.text)
		}
	}
	return ids
}

func (r *response) repositoryInfo() *cmis.RepositoryInfo {
	n := r.root.find("repositoryInfo")
	if n == nil {
		return nil
	}
	text := func(name string) string {
		if c := n.child(name); c != nil {
			return c.text
		}
		return ""
	}
	info := &cmis.RepositoryInfo{
		ID:                   text("repositoryId"),
		Name:                 text("repositoryName"),
		Description:          text("repositoryDescription"),
		VendorName:           text("vendorName"),
		ProductName:          text("productName"),
		ProductVersion:       text("productVersion"),
		RootFolderID:         text("rootFolderId"),
		CMISVersionSupported: text("cmisVersionSupported"),
		Capabilities:         map[string]string{},
	}
	if caps := n.child("capabilities"); caps != nil {
		for _, c := range caps.children {
			info.Capabilities[strings.TrimPrefix(c.name, "capability")] = c.text
		}
	}
	return info
}
