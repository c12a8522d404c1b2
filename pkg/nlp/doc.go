// Package nlp provides the language processing capabilities the linker and the
// co-occurrence builder depend on.
//
// Two capabilities are defined:
//   - Recognizer: finds entity spans in a text and proposes an identifier for each
//   - Tagger: splits a text into part-of-speech tagged tokens
//
// OpenTapiocaClient and HTTPTagger talk to remote services. RegexTagger is an
// offline tokenizer that leaves tags empty. Guarded adds retry and circuit
// breaking on top of any implementation.
//
// All offsets returned by this package are byte offsets into the input text.
package nlp
