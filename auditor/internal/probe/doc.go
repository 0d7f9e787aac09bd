// Package probe decides which storefronts are live.
//
// CheckAll fans out one GET https://{hostname} per store and joins once;
// Partition then walks the results sequentially and produces the live subset
// and the list of not-live hostnames. A store is live iff the final status is
// exactly 200. Redirects are followed (net/http default, 10 hops).
//
// Every probe builds its own client and transport with keep-alives off, so
// no connection is reused between stores.
package probe
