// Package device talks to the embedded device's REST API.
//
// Every endpoint answers with a JSON envelope of the form
// {"status": "success"|"error", ...fields}. The typed methods on [Client]
// decode that envelope and classify failures into three sentinel errors:
//
//   - [ErrTransport]: the request could not be completed
//   - [ErrNonSuccess]: the device answered with a status other than "success"
//   - [ErrMalformed]: the body was not valid JSON or lacked required fields
//
// Callers use errors.Is to tell them apart.
package device
