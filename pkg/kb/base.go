package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/minerva/pkg/types"
)

// Base holds the read-only knowledge tables. It is loaded once at startup and
// shared by every request or command afterwards.
type Base struct {
	// QIDs maps a gold annotation label to its identifier.
	QIDs map[string]string `json:"qids"`
	// Claims maps an identifier to property -> claim values.
	Claims map[string]map[string][]string `json:"-"`
	// Records are full records available offline (e.g. a minidump).
	Records map[string]*types.KnowledgeRecord `json:"-"`
}

// NewBase creates an empty base.
func NewBase() *Base {
	return &Base{
		QIDs:    make(map[string]string),
		Claims:  make(map[string]map[string][]string),
		Records: make(map[string]*types.KnowledgeRecord),
	}
}

// QID returns the identifier for an annotation label, or NIL.
func (b *Base) QID(annotation string) string {
	if qid, ok := b.QIDs[annotation]; ok && qid != "" {
		return qid
	}
	return types.NIL
}

// ClaimValues returns the values of property for qid.
func (b *Base) ClaimValues(qid, property string) []string {
	return b.Claims[qid][property]
}

// Fetch implements Fetcher over the offline records.
func (b *Base) Fetch(_ context.Context, id string) (*types.KnowledgeRecord, error) {
	record, ok := b.Records[id]
	if !ok {
		return nil, types.NewNotFoundError(id)
	}
	return record, nil
}

// AddRecords makes records available to Fetch.
func (b *Base) AddRecords(records ...*types.KnowledgeRecord) {
	for _, r := range records {
		if r != nil && r.ID != "" {
			b.Records[r.ID] = r
		}
	}
}

// LoadBase reads a knowledge base file of the form {"qids": {label: id}, ...}.
// Other top-level keys are ignored.
func LoadBase(path string) (*Base, error) {
	base := NewBase()
	var file struct {
		QIDs map[string]string `json:"qids"`
	}
	if err := readJSON(path, &file); err != nil {
		return nil, err
	}
	if file.QIDs != nil {
		base.QIDs = file.QIDs
	}
	return base, nil
}

// LoadClaims reads a {qid: {property: [values]}} file into the base.
func (b *Base) LoadClaims(path string) error {
	claims := make(map[string]map[string][]string)
	if err := readJSON(path, &claims); err != nil {
		return err
	}
	b.Claims = claims
	return nil
}

// LoadDump reads a JSON array of records (the minidump format) into the base.
func (b *Base) LoadDump(path string) error {
	var records []*types.KnowledgeRecord
	if err := readJSON(path, &records); err != nil {
		return err
	}
	b.AddRecords(records...)
	return nil
}

// LoadPseudonyms reads a {pseudonym: real name} file.
func LoadPseudonyms(path string) (map[string]string, error) {
	pseudonyms := make(map[string]string)
	if err := readJSON(path, &pseudonyms); err != nil {
		return nil, err
	}
	return pseudonyms, nil
}

// RealNames returns the distinct values of a pseudonym map in sorted order.
func RealNames(pseudonyms map[string]string) []string {
	seen := make(map[string]struct{}, len(pseudonyms))
	names := make([]string, 0, len(pseudonyms))
	for _, name := range pseudonyms {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewIOError("read", path, err)
	}
	if err := DecodeLenient(data, out); err != nil {
		return types.NewIOError("decode", path, err)
	}
	return nil
}

// DecodeLenient decodes JSON, repairing hand-edited input (trailing commas,
// single quotes, unquoted keys) when strict decoding fails.
func DecodeLenient(data []byte, out interface{}) error {
	err := json.Unmarshal(data, out)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); !ok {
		return err
	}
	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, repairErr)
	}
	return json.Unmarshal([]byte(repaired), out)
}
