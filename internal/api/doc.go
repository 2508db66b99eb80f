// Package api implements the JSON HTTP API for the chat backend.
//
// Every response uses a uniform envelope:
//
//	{"success": true,  "message": "...", "data": {...}}
//	{"success": false, "message": "...", "errors": [{"field": "...", "message": "..."}]}
//
// Authenticated routes require a Bearer token issued by /auth/login or
// /auth/register. The identity gate distinguishes a missing header, a
// malformed header, and a failed verification so clients can tell
// configuration mistakes from expired credentials.
package api
