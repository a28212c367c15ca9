// Package research holds the vocabulary of the fetch tier: the candidate URLs
// handed over by the search tier, the cache entries kept on disk, and the
// fetched and failed items emitted to the classification tier.
//
// Adapters live in sibling packages (cache, fetcher, clock, hash) and satisfy
// the small interfaces declared here so the batch processor can be exercised
// with stubs.
package research
