package httpapi

// Package httpapi exposes the download manager over a small JSON HTTP
// surface: submit, poll, list, cancel, preview, history, and the serial
// queue mode toggle.
