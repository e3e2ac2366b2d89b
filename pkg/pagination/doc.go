// Package pagination implements bounded traversal of Bitbucket-style
// paginated listing endpoints.
//
// Bitbucket wraps every listing response in a standard envelope:
//
//	{"values": [...], "page": 2, "pagelen": 25, "next": "...", "previous": "..."}
//
// The Paginator turns one logical listing request into one or more
// transport calls and a single aggregate result. Three caller intents are
// supported:
//
//   - explicit page: fetch exactly the requested page number
//   - single page: fetch the resource's first page
//   - all: follow "next" continuation links until the collection is
//     exhausted or the configured item cap is reached
//
// Continuation links are treated as opaque cursors and replayed verbatim;
// the Paginator never reconstructs page numbers by incrementing integers.
// The item cap is a hard ceiling on accumulated values, bounding memory and
// request count for arbitrarily large upstream collections.
//
// Example usage:
//
//	paginator, err := pagination.New(bbClient, pagination.DefaultPolicy())
//	result, err := paginator.FetchValues(ctx, pagination.Request{
//		ResourcePath: "/2.0/repositories/acme/widget/pullrequests",
//		All:          true,
//		ExtraParams:  map[string]string{"state": "OPEN"},
//		Description:  "open pull requests",
//	})
//
// Failures on any page abort the whole traversal: callers receive either a
// complete result or an error, never a silently truncated partial listing.
package pagination
