package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/soundprediction/minerva/pkg/types"
)

// writeFile creates path (and its parent directories) and hands a buffered
// writer to write.
func writeFile(path string, write func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewIOError("mkdir", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return types.NewIOError("create", path, err)
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return types.NewIOError("write", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return types.NewIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return types.NewIOError("close", path, err)
	}
	return nil
}

// EncodeCandidates writes the candidate map as a JSON object indented by one
// space.
func EncodeCandidates(w io.Writer, candidates *types.CandidateSet) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	return enc.Encode(candidates)
}

// WriteCandidates writes the candidate map to path.
func WriteCandidates(path string, candidates *types.CandidateSet) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeCandidates(w, candidates)
	})
}

// ReadCandidates reads a candidate map written by WriteCandidates.
func ReadCandidates(path string) (*types.CandidateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewIOError("read", path, err)
	}
	candidates := types.NewCandidateSet()
	if err := json.Unmarshal(data, candidates); err != nil {
		return nil, types.NewIOError("decode", path, err)
	}
	return candidates, nil
}

// EncodeMinidump writes records as a JSON array with one compact record per
// line.
func EncodeMinidump(w io.Writer, records []*types.KnowledgeRecord) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	var buf bytes.Buffer
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		buf.Reset()
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		sep := " "
		if i > 0 {
			sep = ",\n "
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n]\n")
	return err
}

// WriteMinidump writes the minidump to path.
func WriteMinidump(path string, records []*types.KnowledgeRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeMinidump(w, records)
	})
}

// EncodeGraph writes doc as JSON. Annotated snippets keep their markup
// unescaped.
func EncodeGraph(w io.Writer, doc *types.GraphDocument) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// DecodeGraph reads a graph document. Links may carry node objects as
// endpoints.
func DecodeGraph(r io.Reader) (*types.GraphDocument, error) {
	doc := types.NewGraphDocument()
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteGraph writes doc to path.
func WriteGraph(path string, doc *types.GraphDocument) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeGraph(w, doc)
	})
}

// ReadGraph reads a graph document from path.
func ReadGraph(path string) (*types.GraphDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	defer f.Close()
	doc, err := DecodeGraph(bufio.NewReader(f))
	if err != nil {
		return nil, types.NewIOError("decode", path, err)
	}
	return doc, nil
}
