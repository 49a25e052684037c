package session

import "net/url"

// Navigator is the slice of the hosting environment's navigation surface
// this package consumes: the current URL, history rewriting and terminal
// page navigation.  A wasm front end or an embedded webview supplies the
// real thing; TestNavigator supplies one for tests.
type Navigator interface {
	// CurrentURL returns the URL of the current page.
	CurrentURL() (*url.URL, error)

	// ReplaceHistory rewrites the visible URL without navigating.
	ReplaceHistory(u *url.URL) error

	// Assign navigates to u, pushing a new history entry.  Terminal for the
	// page on success.
	Assign(u *url.URL) error

	// Replace navigates to u, replacing the current history entry.
	// Terminal for the page on success.
	Replace(u *url.URL) error
}

// Message is one cross-document message: the origin of the sending document
// and its string payload.  Non-string payloads are dropped before they reach
// this package.
type Message struct {
	Origin string
	Data   string
}

// MessageSource delivers cross-document messages.  Subscribe returns a
// receive channel and a cancel func which must release the subscription;
// after cancel returns no further sends may happen on the channel.
type MessageSource interface {
	Subscribe() (<-chan Message, func())
}
