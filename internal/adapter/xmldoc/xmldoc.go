// Package xmldoc parses an XML document into a small element tree that
// keeps per-element line numbers, which the adapters need for error
// locations and source metadata.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Element is one XML element with its attributes, trimmed character data,
// ordered children, and the source line it starts on.
type Element struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Element
	Line     int
}

// Parse reads data into an element tree rooted at the document element.
func Parse(data []byte) (*Element, error) {
	newlines := newlineOffsets(data)
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineAt(newlines, dec.InputOffset()), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Name:  t.Name.Local,
				Attrs: make(map[string]string, len(t.Attr)),
				Line:  lineAt(newlines, dec.InputOffset()),
			}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("line %d: multiple document elements", el.Line)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	root.trimText()
	return root, nil
}

func (e *Element) trimText() {
	e.Text = strings.TrimSpace(e.Text)
	for _, c := range e.Children {
		c.trimText()
	}
}

// Find returns the first child element with the given name, or nil.
func (e *Element) Find(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindAll returns all child elements with the given name, in document
// order.
func (e *Element) FindAll(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the attribute value and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// AttrDefault returns the attribute value, or def when absent.
func (e *Element) AttrDefault(name, def string) string {
	if v, ok := e.Attrs[name]; ok {
		return v
	}
	return def
}

// ChildText returns the trimmed text of the first child with the given
// name, or def when the child is absent or empty.
func (e *Element) ChildText(name, def string) string {
	c := e.Find(name)
	if c == nil || c.Text == "" {
		return def
	}
	return c.Text
}

func newlineOffsets(data []byte) []int64 {
	var offs []int64
	for i, b := range data {
		if b == '\n' {
			offs = append(offs, int64(i))
		}
	}
	return offs
}

func lineAt(newlines []int64, offset int64) int {
	return sort.Search(len(newlines), func(i int) bool { return newlines[i] >= offset }) + 1
}
