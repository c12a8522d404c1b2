// Package corpus reads TEI corpora: a directory of XML files or a zip archive of
// them. Documents are kept as a small DOM so they can be re-annotated and written
// back with their original prefixes and layout.
//
// Elements are matched by local name, so both namespaced TEI
// (xmlns="http://www.tei-c.org/ns/1.0") and plain files work.
package corpus
