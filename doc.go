// Package tia provides a native Go client for a collection-oriented threat
// intelligence feed API.
//
// # Features
//
//   - Lazy Go 1.25+ iterators over paginated feed collections
//   - Declarative key-path templates for reshaping nested feed records
//   - Page-wide IOC extraction with flat, searchable output
//   - Typed errors for precise error handling
//   - Functional options for flexible configuration
//
// # Quick Start
//
//	client, err := tia.NewClient(
//	    tia.WithCredentials("user@example.com", apiKey),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = client.SetIOCKeys("attacks/ddos", tia.Object{
//	    {Key: "ips", Value: tia.Path("iocs.network.ip")},
//	    {Key: "urls", Value: tia.Path("iocs.network.url")},
//	})
//
//	seq, err := client.Feeds.Updates(ctx, "attacks/ddos", &tia.FeedQuery{
//	    DateFrom: "2024-01-01",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for portion, err := range seq {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    iocs, err := portion.IOCs(nil)
//	    ...
//	}
//
// # Templates
//
// A template set maps output keys to dot-separated key paths into the
// record tree. Paths descend mappings by key and broadcast over lists, so
// "iocs.network.ip" reaches every network entry without explicit indexing.
// Fields render in declaration order; an Inject field reuses the rendered
// value of an earlier sibling:
//
//	tia.Object{
//	    {Key: "network", Value: tia.Object{
//	        {Key: "ips", Value: tia.Path("iocs.network.ip")},
//	    }},
//	    {Key: "type", Value: tia.Inject("network")},
//	}
//
// Absent paths render as empty lists, never as errors.
//
// # Pagination
//
// Updates traverses a collection in ascending cursor order. The cursor of
// the last yielded portion resumes an equivalent traversal later with
// strict greater-than semantics: no replay, no gap. Search traverses in
// descending order over full change history and is not resumable.
//
//	seq, err := client.Feeds.Updates(ctx, "attacks/ddos", &tia.FeedQuery{
//	    SeqUpdate: lastCursor,
//	})
//
// WatermarkStore persists cursors between runs.
//
// # Error Handling
//
// The package uses typed errors that can be inspected with errors.As:
//
//	_, err := client.Feeds.Get(ctx, "attacks/ddos", "bad-id")
//	if err != nil {
//	    var notFound *tia.NotFoundError
//	    if errors.As(err, &notFound) {
//	        // Handle not found
//	    }
//	}
package tia
