// Package httpapi serves the StayEase auth endpoints over net/http.
//
// Handlers only decode JSON, call the Engine and translate results: status
// codes and client messages live in errors.go, the refresh cookie in
// cookies.go. Routes are registered on a method-aware http.ServeMux under
// a configurable base path (default "/api").
package httpapi
