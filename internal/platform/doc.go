package platform

// Package platform contains OS/platform integration and external tooling glue:
// the fetch-process capability boundary, progress line parsing, failure
// classification, filesystem helpers, and OS folder reveal.
