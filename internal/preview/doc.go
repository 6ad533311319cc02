package preview

// Package preview fetches title/thumbnail metadata for a URL without starting
// a download. Lookups are bounded by a timeout, rate-limited to stay polite
// to the upstream, and cached for the process lifetime.
