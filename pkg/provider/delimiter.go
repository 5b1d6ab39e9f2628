package provider

import "context"

// DelimiterLister supports delimiter-based listing.
//
// A single call returns one page for one prefix:
//   - Objects directly under Prefix (no delimiter in the remainder of the key)
//   - CommonPrefixes (immediate child prefixes, each ending in Delimiter)
//   - ContinuationToken when the page was truncated
//
// Nested structure must never be expanded recursively: a deeper level is only
// ever reported as an opaque common prefix.
type DelimiterLister interface {
	ListWithDelimiter(ctx context.Context, opts ListWithDelimiterOptions) (*ListWithDelimiterResult, error)
}

// ListWithDelimiterOptions configures a delimiter listing operation.
type ListWithDelimiterOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists from the bucket root.
	Prefix string

	// Delimiter groups keys (e.g., "/").
	Delimiter string

	// ContinuationToken resumes listing from a previous ListWithDelimiterResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of keys returned per page.
	// Zero uses the provider default.
	MaxKeys int
}

// ListWithDelimiterResult contains a page of results from a delimiter listing.
type ListWithDelimiterResult struct {
	// Objects are object summaries directly under the requested Prefix.
	Objects []ObjectSummary

	// CommonPrefixes are the immediate child prefixes.
	CommonPrefixes []string

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// HasMore reports whether another page must be requested for the same prefix.
//
// The token is authoritative: a truncated page without a token cannot be
// resumed and is treated as final.
func (r *ListWithDelimiterResult) HasMore() bool {
	return r != nil && r.ContinuationToken != ""
}
