// Package api is the Request Client for the video platform's REST API.
//
// Every call goes through (*Client).Do, which encodes the body, sends the
// session cookie, and classifies the outcome: a decoded response, the "no
// content" marker, or an *Error. Callers never see a raw transport error.
//
// The generic helpers Get, Post, Patch and Delete unwrap the
// {statusCode, data, message, success} envelope into a typed *Envelope[T].
// A nil envelope with a nil error means the server sent no content.
package api
