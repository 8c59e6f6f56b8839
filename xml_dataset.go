package fileschema

import (
	"context"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
)

// datasetTable is one table described by an XSD: a complex element whose simple
// child elements and attributes are its columns
type datasetTable struct {
	name    string
	paths   map[string]bool
	columns []string
	attrs   map[string]bool
}

func (t *datasetTable) addColumn(name string, attribute bool) {
	for _, c := range t.columns {
		if c == name {
			return
		}
	}
	t.columns = append(t.columns, name)
	if attribute {
		t.attrs[name] = true
	}
}

// dataset is the table set of an XSD in declaration order
type dataset struct {
	tables []*datasetTable
	byName map[string]*datasetTable
}

// tableAt returns the dataset table declared at the element path, if any
func (d *dataset) tableAt(path string) *datasetTable {
	for _, t := range d.tables {
		if t.paths[path] {
			return t
		}
	}
	return nil
}

// xsdParser resolves element declarations of one XSD document
type xsdParser struct {
	types    map[string]*xmlNode
	elements map[string]*xmlNode
	set      *dataset
	depth    int
}

// localName strips a namespace prefix ("xs:string" -> "string")
func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// maxXSDDepth bounds recursion through self-referencing types
const maxXSDDepth = 32

// parseXSD reads the dataset tables of the XSD at path
func parseXSD(path string) (*dataset, error) {
	schema, err := parseXMLFile(path, "")
	if err != nil {
		return nil, err
	}
	if schema.name != "schema" {
		return nil, model.SourceReadf("%s is not an XML schema", path)
	}

	p := &xsdParser{
		types:    make(map[string]*xmlNode),
		elements: make(map[string]*xmlNode),
		set:      &dataset{byName: make(map[string]*datasetTable)},
	}
	var roots []*xmlNode
	for _, c := range schema.children {
		name, _ := c.attr("name")
		switch c.name {
		case "complexType":
			p.types[name] = c
		case "element":
			p.elements[name] = c
			roots = append(roots, c)
		}
	}
	if len(roots) == 0 {
		return nil, model.SourceReadf("schema %s declares no root element", path)
	}

	// The first global element is the document element
	p.element(roots[0], "")
	if len(p.set.tables) == 0 {
		return nil, model.SourceReadf("schema %s declares no tables", path)
	}
	return p.set, nil
}

// complexType returns the inline or named complex type of an element declaration
func (p *xsdParser) complexType(decl *xmlNode) *xmlNode {
	if inline := decl.child("complexType"); inline != nil {
		return inline
	}
	if typeName, ok := decl.attr("type"); ok {
		return p.types[localName(typeName)]
	}
	return nil
}

// element registers decl found below parentPath
func (p *xsdParser) element(decl *xmlNode, parentPath string) (string, bool) {
	if ref, ok := decl.attr("ref"); ok {
		if target := p.elements[localName(ref)]; target != nil {
			decl = target
		}
	}
	name, _ := decl.attr("name")
	if name == "" {
		return "", false
	}

	ct := p.complexType(decl)
	if ct == nil {
		return name, false
	}
	if p.depth >= maxXSDDepth {
		return name, true
	}
	p.depth++
	defer func() { p.depth-- }()

	path := joinPath(parentPath, name)
	var (
		columns []string
		attrs   []string
	)
	// A table is listed before the tables nested in it
	position := len(p.set.tables)
	p.particles(ct, path, &columns, &attrs)
	if len(columns)+len(attrs) > 0 {
		table, ok := p.set.byName[name]
		if !ok {
			table = &datasetTable{name: name, paths: make(map[string]bool), attrs: make(map[string]bool)}
			p.set.byName[name] = table
			p.set.tables = slices.Insert(p.set.tables, position, table)
		}
		table.paths[path] = true
		for _, a := range attrs {
			table.addColumn(a, true)
		}
		for _, c := range columns {
			table.addColumn(c, false)
		}
	}
	return name, true
}

// particles walks a complex type collecting simple children and attributes of the
// element at path; complex children are registered as tables of their own
func (p *xsdParser) particles(node *xmlNode, path string, columns, attrs *[]string) {
	for _, c := range node.children {
		switch c.name {
		case "sequence", "all", "choice", "complexContent", "simpleContent", "extension":
			p.particles(c, path, columns, attrs)
		case "attribute":
			if name, ok := c.attr("name"); ok {
				*attrs = append(*attrs, name)
			}
		case "element":
			if name, complex := p.element(c, path); name != "" && !complex {
				*columns = append(*columns, name)
			}
		}
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// schemaPath resolves the XSD path of a layout; relative paths are relative to the root
func schemaPath(layout model.RootPath) (string, error) {
	if layout.XML.SchemaPath == "" {
		return "", model.Configurationf("xml schema strategy requires a schema path")
	}
	if filepath.IsAbs(layout.XML.SchemaPath) {
		return layout.XML.SchemaPath, nil
	}
	return filepath.Join(layout.RootPath, layout.XML.SchemaPath), nil
}

// datasetTableName is the staged table holding rows of one dataset table
func datasetTableName(tableName, datasetTable string) string {
	return tableName + "_" + datasetTable
}

// globalKey concatenates the declared key values found below the document root.
// Without declared keys the file name without extension is the key.
func globalKey(root *xmlNode, keys []model.XMLKey, path string) (string, error) {
	if len(keys) == 0 {
		base := filepath.Base(model.StripCompressionExt(path))
		return strings.TrimSuffix(base, filepath.Ext(base)), nil
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		node := root
		for _, step := range strings.Split(strings.Trim(key.Element, "/"), "/") {
			if step == "" {
				continue
			}
			if node = node.child(step); node == nil {
				return "", model.SourceReadf("key element %q not found", key.Element)
			}
		}
		if key.Attribute == "" {
			parts = append(parts, node.content())
			continue
		}
		value, ok := node.attr(key.Attribute)
		if !ok {
			return "", model.SourceReadf("key attribute %q of %q not found", key.Attribute, key.Element)
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, globalKeySeparator), nil
}

// datasetRows collects the rows of every dataset table in document order
func datasetRows(root *xmlNode, set *dataset) map[*datasetTable][]model.Row {
	rows := make(map[*datasetTable][]model.Row, len(set.tables))
	var walk func(n *xmlNode, parent string)
	walk = func(n *xmlNode, parent string) {
		path := joinPath(parent, n.name)
		if table := set.tableAt(path); table != nil {
			row := make(model.Row, len(table.columns))
			for i, col := range table.columns {
				if table.attrs[col] {
					row[i], _ = n.attr(col)
					continue
				}
				if c := n.child(col); c != nil {
					row[i] = c.content()
				}
			}
			rows[table] = append(rows[table], row)
		}
		for _, c := range n.children {
			walk(c, path)
		}
	}
	walk(root, "")
	return rows
}

// importDataset stages every dataset table of the document tagged with the global key
func (a *XMLAdapter) importDataset(ctx context.Context, root *xmlNode, path string, layout model.RootPath, rowLimit int) (int64, error) {
	xsd, err := schemaPath(layout)
	if err != nil {
		return 0, err
	}
	set, err := parseXSD(xsd)
	if err != nil {
		return 0, err
	}
	key, err := globalKey(root, layout.XML.Keys, path)
	if err != nil {
		return 0, err
	}

	rows := datasetRows(root, set)
	var total int64
	for _, table := range set.tables {
		tagged := make([]model.Row, len(rows[table]))
		for i, row := range rows[table] {
			tagged[i] = append(model.Row{key, key + globalKeySeparator + strconv.Itoa(i)}, row...)
		}

		names := append([]string{GlobalKeyColumn, GlobalKeyIndexColumn}, table.columns...)
		stmt := newTableStatement(a.store.Dialect(), a.schema, datasetTableName(a.table, table.name), textColumns(names))
		loaded, err := a.loader().load(ctx, stmt, newSliceSource(tagged...), rowLimit)
		total += loaded
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// GetAllTableNames lists the staged tables of the layout. In schema mode these are
// the dataset tables of the XSD, otherwise the single adapter table.
func (a *XMLAdapter) GetAllTableNames(_ context.Context, layout model.RootPath) ([]model.TableRef, error) {
	if layout.XML.Strategy != model.XMLStrategySchema {
		return []model.TableRef{a.Target()}, nil
	}

	xsd, err := schemaPath(layout)
	if err != nil {
		return nil, err
	}
	set, err := parseXSD(xsd)
	if err != nil {
		return nil, err
	}
	refs := make([]model.TableRef, len(set.tables))
	for i, table := range set.tables {
		refs[i] = model.TableRef{Schema: a.schema, Table: datasetTableName(a.table, table.name)}
	}
	return refs, nil
}
