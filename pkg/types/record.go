package types

import (
	"encoding/json"
	"fmt"
)

// Well-known Wikidata properties and items used by the pipeline.
const (
	PropertyInstanceOf = "P31"
	PropertyOccupation = "P106"
	PropertyImage      = "P18"

	ItemHuman = "Q5"
)

// KnowledgeRecord is a knowledge-base item with its structured claims. The raw
// JSON it was decoded from is kept so records round-trip unchanged.
type KnowledgeRecord struct {
	ID     string                 `json:"id"`
	Claims map[string][]Statement `json:"claims,omitempty"`

	raw json.RawMessage
}

// Statement is a single claim on a record.
type Statement struct {
	MainSnak Snak `json:"mainsnak"`
}

// Snak carries the property, its datatype and the value.
type Snak struct {
	SnakType  string     `json:"snaktype,omitempty"`
	Property  string     `json:"property,omitempty"`
	DataType  string     `json:"datatype,omitempty"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue is a typed claim value. Value stays raw because its shape depends on Type.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type entityIDValue struct {
	ID string `json:"id"`
}

// UnmarshalJSON decodes a record and keeps a copy of the input bytes.
func (r *KnowledgeRecord) UnmarshalJSON(data []byte) error {
	type alias KnowledgeRecord
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = KnowledgeRecord(a)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the original JSON when the record was decoded, otherwise the
// struct fields.
func (r *KnowledgeRecord) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	type alias KnowledgeRecord
	return json.Marshal((*alias)(r))
}

// ItemValues returns the item identifiers claimed for property, skipping
// statements without a value (somevalue/novalue snaks).
func (r *KnowledgeRecord) ItemValues(property string) []string {
	var ids []string
	for _, st := range r.Claims[property] {
		dv := st.MainSnak.DataValue
		if dv == nil || dv.Type != "wikibase-entityid" {
			continue
		}
		var v entityIDValue
		if err := json.Unmarshal(dv.Value, &v); err != nil || v.ID == "" {
			continue
		}
		ids = append(ids, v.ID)
	}
	return ids
}

// HasItem reports whether property claims item.
func (r *KnowledgeRecord) HasItem(property, item string) bool {
	for _, id := range r.ItemValues(property) {
		if id == item {
			return true
		}
	}
	return false
}

// FirstString returns the datatype and string value of the first statement for
// property. It fails with NotFoundError when there is none.
func (r *KnowledgeRecord) FirstString(property string) (datatype, value string, err error) {
	statements := r.Claims[property]
	if len(statements) == 0 || statements[0].MainSnak.DataValue == nil {
		return "", "", NewNotFoundError(r.ID, property)
	}
	snak := statements[0].MainSnak
	if err := json.Unmarshal(snak.DataValue.Value, &value); err != nil {
		return "", "", fmt.Errorf("decode %s value of %s: %w", property, r.ID, err)
	}
	return snak.DataType, value, nil
}

// NewItemStatement builds a wikibase-item statement, mostly for tests and fakes.
func NewItemStatement(property, id string) Statement {
	value, _ := json.Marshal(entityIDValue{ID: id})
	return Statement{MainSnak: Snak{
		SnakType:  "value",
		Property:  property,
		DataType:  "wikibase-item",
		DataValue: &DataValue{Type: "wikibase-entityid", Value: value},
	}}
}

// NewStringStatement builds a string-valued statement with the given datatype.
func NewStringStatement(property, datatype, s string) Statement {
	value, _ := json.Marshal(s)
	return Statement{MainSnak: Snak{
		SnakType:  "value",
		Property:  property,
		DataType:  datatype,
		DataValue: &DataValue{Type: "string", Value: value},
	}}
}
