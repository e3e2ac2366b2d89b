// Package bitbucket exposes Bitbucket Cloud REST resources (repositories,
// pull requests, pipelines) as callable operations for automated agents.
//
// Listing operations share a single pagination engine: callers express
// intent through ListOptions (one page, an explicit page, or everything up
// to the item cap) and receive one aggregate pagination.Result. Items stay
// opaque JSON so agents can forward them without this package keeping up
// with every upstream schema change.
package bitbucket
