// Package httputil provides the JSON plumbing of the HTTP host.
//
// # Responses
//
// [WriteJSON] encodes a value with the given status. [WriteError] maps an
// error to a status with [errors.HTTPStatus] and writes
//
//	{"error": {"code": "SESSION_NOT_FOUND", "message": "session \"..\" not found"}}
//
// so clients can branch on the code without parsing messages.
//
// # Requests
//
// [DecodeJSON] reads a size-limited body, rejects unknown fields and
// validates the result against its `validate` tags:
//
//	var req modeRequest
//	if err := httputil.DecodeJSON(r, &req); err != nil {
//	    httputil.WriteError(w, err)
//	    return
//	}
//
// # Negotiation
//
// [Accepts] reports whether a request's Accept header lists a media type,
// which the event endpoint uses to answer browsers with SVG and API clients
// with JSON.
package httputil
