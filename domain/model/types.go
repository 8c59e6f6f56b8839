// Package model provides domain model for fileschema
package model

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TextThreshold is the declared string length above which a column is reported as Text.
const TextThreshold = 1024

// PropertyType is the semantic type of a discovered column.
type PropertyType int

const (
	// PropertyTypeString represents a bounded string column
	PropertyTypeString PropertyType = iota
	// PropertyTypeBool represents a boolean column
	PropertyTypeBool
	// PropertyTypeInteger represents a 32/64-bit integer column
	PropertyTypeInteger
	// PropertyTypeFloat represents a 32/64-bit floating point column
	PropertyTypeFloat
	// PropertyTypeDatetime represents a timestamp column
	PropertyTypeDatetime
	// PropertyTypeText represents a string column longer than TextThreshold
	PropertyTypeText
)

// String returns the name of the property type
func (pt PropertyType) String() string {
	switch pt {
	case PropertyTypeBool:
		return "Bool"
	case PropertyTypeInteger:
		return "Integer"
	case PropertyTypeFloat:
		return "Float"
	case PropertyTypeDatetime:
		return "Datetime"
	case PropertyTypeText:
		return "Text"
	default:
		return "String"
	}
}

// Property is one column of a Schema.
type Property struct {
	// ID is the column identifier, unique within a Schema
	ID string `json:"id"`
	// Name is the display name of the column
	Name string `json:"name"`
	// Type is the inferred semantic type
	Type PropertyType `json:"type"`
	// TypeAtSource is the raw type reported by the staging store, diagnostic only
	TypeAtSource string `json:"typeAtSource"`
	// IsKey reports whether the column participates in the natural key
	IsKey bool `json:"isKey"`
	// IsNullable is the logical negation of IsKey when a layout declares the column
	IsNullable bool `json:"isNullable"`
}

// DataFlowDirection describes whether a schema can be read, written or both.
type DataFlowDirection int

const (
	// DataFlowReadOnly marks schemas that are only read from
	DataFlowReadOnly DataFlowDirection = iota
	// DataFlowReadWrite marks schemas that can be read and written
	DataFlowReadWrite
	// DataFlowWrite marks schemas that are only written to
	DataFlowWrite
)

// String returns the name of the direction
func (d DataFlowDirection) String() string {
	switch d {
	case DataFlowReadWrite:
		return "ReadWrite"
	case DataFlowWrite:
		return "Write"
	default:
		return "ReadOnly"
	}
}

// CountKind tells whether a Count carries an exact value.
type CountKind int

const (
	// CountUnavailable means the count could not be computed
	CountUnavailable CountKind = iota
	// CountExact means Value holds the exact row count
	CountExact
)

// Count is the row count of a schema.
type Count struct {
	Kind  CountKind `json:"kind"`
	Value int64     `json:"value"`
}

// ExactCount creates an exact Count.
func ExactCount(n int64) Count {
	return Count{Kind: CountExact, Value: n}
}

// UnavailableCount creates a Count that carries no value.
func UnavailableCount() Count {
	return Count{Kind: CountUnavailable}
}

// IsExact reports whether the count holds a value.
func (c Count) IsExact() bool {
	return c.Kind == CountExact
}

// RecordAction is the action attached to a Record.
type RecordAction int

const (
	// RecordActionUpsert is the only action produced by the engine
	RecordActionUpsert RecordAction = iota
)

// String returns the name of the action
func (a RecordAction) String() string {
	return "Upsert"
}

// RecordData maps property ids to values, keeping property order.
type RecordData = orderedmap.OrderedMap[string, any]

// Record is one staged row surfaced to a caller.
type Record struct {
	Action RecordAction
	Data   *RecordData
}

// NewRecord creates an empty Upsert record.
func NewRecord() Record {
	return Record{
		Action: RecordActionUpsert,
		Data:   orderedmap.New[string, any](),
	}
}

// Value returns the value stored for a property id.
func (r Record) Value(id string) (any, bool) {
	if r.Data == nil {
		return nil, false
	}
	return r.Data.Get(id)
}

// Keys returns the property ids in order.
func (r Record) Keys() []string {
	if r.Data == nil {
		return nil
	}
	keys := make([]string, 0, r.Data.Len())
	for pair := r.Data.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Schema identifies a logical staged table.
type Schema struct {
	// ID is the quoted schema.table pair, unique per staged table
	ID string `json:"id"`
	// Name is the table name
	Name string `json:"name"`
	// Query defines the row set; empty means the full table
	Query string `json:"query"`
	// DataFlowDirection tells callers how the schema may be used
	DataFlowDirection DataFlowDirection `json:"dataFlowDirection"`
	// Properties are the ordered columns
	Properties []Property `json:"properties"`
	// Sample holds the first rows of the staged data
	Sample []Record `json:"-"`
	// Count is the exact row count of the staged data, when available
	Count Count `json:"count"`
	// PublisherMetaJSON carries the payload needed to re-resolve the source
	PublisherMetaJSON string `json:"publisherMetaJson"`
}

// Property returns the property with the given id.
func (s Schema) Property(id string) (Property, bool) {
	for _, p := range s.Properties {
		if p.ID == id {
			return p, true
		}
	}
	return Property{}, false
}

// TableRef names a staged table.
type TableRef struct {
	Schema string
	Table  string
}

// String returns schema.table without quoting
func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

// Header is file header.
type Header []string

// NewHeader create new Header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Equal compare Header.
func (h Header) Equal(h2 Header) bool {
	if len(h) != len(h2) {
		return false
	}
	for i, v := range h {
		if v != h2[i] {
			return false
		}
	}
	return true
}

// Row is one parsed source row, aligned with a Header.
type Row []string

// Fit pads or truncates the row to width columns.
func (r Row) Fit(width int) Row {
	if len(r) == width {
		return r
	}
	fitted := make(Row, width)
	copy(fitted, r)
	return fitted
}
