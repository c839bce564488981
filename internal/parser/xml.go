package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/splinegest/internal/doctree"
	"golang.org/x/net/html/charset"
)

// XMLParser builds a doctree from any XML document, COLLADA included.
// Element and attribute names are kept as local names; namespaces are
// dropped. Comments, processing instructions and directives are skipped.
type XMLParser struct{}

func (p *XMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	dec := xml.NewDecoder(r)
	// Exporters still write ISO-8859-1 and windows-125x headers.
	dec.CharsetReader = charset.NewReaderLabel

	doc := &doctree.Document{}
	var stack []*doctree.Node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml %s: %w", filename, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &doctree.Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					node.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if doc.Root != nil {
					return nil, fmt.Errorf("parse xml %s: multiple root elements", filename)
				}
				doc.Root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}

		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}

	if doc.Root == nil {
		return nil, fmt.Errorf("parse xml %s: document has no root element", filename)
	}
	return doc, nil
}
