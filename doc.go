// Package minerva links the named-entity mentions of an annotated TEI corpus to
// Wikidata identifiers and builds graphs over the corpus for visualization.
//
// # Basic Usage
//
// Load the knowledge tables once and create a client with the capabilities the
// operations need:
//
//	base, err := kb.LoadBase("static/json/mdf-knowledge-base.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	client := minerva.NewClient(base, &minerva.Config{MaxDegree: 10},
//		minerva.WithTagger(nlp.RegexTagger{}),
//	)
//	defer client.Close(ctx)
//
// # Co-occurrence graphs
//
// Cooccurrences counts, for every sentence, which tokens appear next to which
// entities, scores each pair with a smoothed Dice coefficient and keeps the
// strongest pairs of every entity:
//
//	src, closer, err := corpus.Open("corpus.zip")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer closer.Close()
//	doc, err := client.Cooccurrences(ctx, src, &minerva.CoocOptions{POSFilter: []string{"NOUN"}})
//
// # Opinion graphs
//
// Opinions links the sentiments carried by sentence annotations to the entities
// the sentences mention, optionally per author:
//
//	doc, err := client.Opinions(ctx, src, &minerva.OpinionOptions{
//		AuthorPath: "teiHeader/profileDesc/textClass/keywords/term[@type='author']",
//	})
//
// # Entity linking
//
// Link proposes identifiers for every gold mention of the corpus. It needs a
// recognizer, a searcher and a fetcher:
//
//	client := minerva.NewClient(base, nil,
//		minerva.WithRecognizer(recognizer),
//		minerva.WithKnowledgeService(searcher, fetcher),
//	)
//	result, err := client.Link(ctx, src, nil)
//
// Graphs can be persisted to Neo4j with WithSink and Persist.
package minerva
