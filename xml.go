package fileschema

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// GlobalKeyColumn holds the composite key of the document a row came from
	GlobalKeyColumn = "GLOBAL_KEY"
	// GlobalKeyIndexColumn holds the global key followed by the row ordinal
	GlobalKeyIndexColumn = "GLOBAL_KEY_INDEX"
	globalKeySeparator   = "_"
	attributePrefix      = "@"
	textKey              = "#text"
)

// XMLAdapter stages XML documents with the flatten or the schema strategy.
type XMLAdapter struct {
	adapterBase
}

// xmlNode is an element of a parsed document. Declarations, comments and
// processing instructions are dropped while parsing.
type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

// attr returns the value of a non-namespaced attribute
func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// child returns the first child element with the given local name
func (n *xmlNode) child(name string) *xmlNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// content returns the trimmed character data of the element
func (n *xmlNode) content() string {
	return strings.TrimSpace(n.text.String())
}

// dataAttrs returns the attributes that are not namespace declarations
func (n *xmlNode) dataAttrs() []xml.Attr {
	attrs := make([]xml.Attr, 0, len(n.attrs))
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrs = append(attrs, a)
	}
	return attrs
}

// charsetReader decodes documents that declare a non UTF-8 encoding
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported document encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// parseXML reads a whole document into an element tree
func parseXML(reader io.Reader, decoded bool) (*xmlNode, error) {
	decoder := xml.NewDecoder(reader)
	decoder.CharsetReader = charsetReader
	if decoded {
		decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
			return input, nil
		}
	}

	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, model.WrapSourceRead(err, "malformed XML")
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: t.Copy().Attr}
			if len(stack) == 0 {
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, model.SourceReadf("document has no root element")
	}
	return root, nil
}

// parseXMLFile opens, decompresses and parses path
func parseXMLFile(path, encoding string) (*xmlNode, error) {
	reader, closer, err := openSource(path, encoding)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer() }()

	root, err := parseXML(reader, encoding != "")
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to parse %s", path)
	}
	return root, nil
}

// document is the generic key-value form of an element tree
type document = orderedmap.OrderedMap[string, any]

// toValue converts an element to a string when it only holds text, otherwise to an
// ordered object of attributes (@name), child elements and text (#text). Repeated
// child elements are collected into an array.
func toValue(n *xmlNode) any {
	attrs := n.dataAttrs()
	if len(attrs) == 0 && len(n.children) == 0 {
		return n.content()
	}

	obj := orderedmap.New[string, any]()
	for _, a := range attrs {
		obj.Set(attributePrefix+a.Name.Local, a.Value)
	}
	for _, c := range n.children {
		value := toValue(c)
		existing, ok := obj.Get(c.name)
		if !ok {
			obj.Set(c.name, value)
			continue
		}
		if list, isList := existing.([]any); isList {
			obj.Set(c.name, append(list, value))
		} else {
			obj.Set(c.name, []any{existing, value})
		}
	}
	if text := n.content(); text != "" {
		obj.Set(textKey, text)
	}
	return obj
}

// toDocument wraps the root element in an object keyed by its name
func toDocument(root *xmlNode) *document {
	doc := orderedmap.New[string, any]()
	doc.Set(root.name, toValue(root))
	return doc
}

// firstArray returns the first array met in a depth-first walk, with the key holding it
func firstArray(value any, key string) ([]any, string, bool) {
	switch v := value.(type) {
	case []any:
		return v, key, true
	case *document:
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			if list, name, ok := firstArray(pair.Value, pair.Key); ok {
				return list, name, true
			}
		}
	}
	return nil, "", false
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// flatten writes nested objects as dotted keys and arrays as indexed keys
func flatten(value any, prefix string, out *orderedmap.OrderedMap[string, string]) {
	switch v := value.(type) {
	case *document:
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			flatten(pair.Value, joinKey(prefix, pair.Key), out)
		}
	case []any:
		for i, item := range v {
			flatten(item, fmt.Sprintf("%s[%d]", prefix, i), out)
		}
	default:
		out.Set(prefix, fmt.Sprint(v))
	}
}

// flattenRows turns a document into rows: one per element of its first array, or a
// single row holding the whole flattened document when it has no array.
func flattenRows(doc *document) ([]string, []model.Row) {
	var records []*orderedmap.OrderedMap[string, string]
	if list, key, ok := firstArray(doc, ""); ok {
		for _, item := range list {
			record := orderedmap.New[string, string]()
			prefix := ""
			if _, isObject := item.(*document); !isObject {
				prefix = key
			}
			flatten(item, prefix, record)
			records = append(records, record)
		}
	} else {
		record := orderedmap.New[string, string]()
		flatten(doc, "", record)
		records = append(records, record)
	}

	columns := orderedmap.New[string, int]()
	for _, record := range records {
		for pair := record.Oldest(); pair != nil; pair = pair.Next() {
			if _, ok := columns.Get(pair.Key); !ok {
				columns.Set(pair.Key, columns.Len())
			}
		}
	}

	header := make([]string, 0, columns.Len())
	for pair := columns.Oldest(); pair != nil; pair = pair.Next() {
		header = append(header, pair.Key)
	}

	rows := make([]model.Row, len(records))
	for i, record := range records {
		row := make(model.Row, len(header))
		for pair := record.Oldest(); pair != nil; pair = pair.Next() {
			idx, _ := columns.Get(pair.Key)
			row[idx] = pair.Value
		}
		rows[i] = row
	}
	return header, rows
}

// ImportTable stages an XML document with the configured strategy
func (a *XMLAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error) {
	errCtx := model.NewErrorContext("import xml", path).WithTable(a.table)

	root, err := parseXMLFile(path, layout.Encoding)
	if err != nil {
		return 0, errCtx.Error(err)
	}

	if layout.XML.Strategy == model.XMLStrategySchema {
		loaded, err := a.importDataset(ctx, root, path, layout, rowLimit)
		if err != nil {
			return loaded, errCtx.Error(err)
		}
		return loaded, nil
	}

	header, rows := flattenRows(toDocument(root))
	loaded, err := a.loader().load(ctx, a.statement(textColumns(header)), newSliceSource(rows...), rowLimit)
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}
