// Package listings fetches release listings from the external aggregator.
//
// The client is a thin read-through layer: responses are cached per source
// with a TTL, outbound requests are paced by a rate limiter so poll fan-out
// stays polite, and every call carries a bounded timeout.
package listings
