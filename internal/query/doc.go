// Package query provides read-only views over the message history.
//
// Payloads are decoded in two steps: the latest record for a topic is
// parsed as a generic JSON document, and a document that is an array is
// normalised to its first element. Field extraction then runs on that
// element. Nothing here returns an error for bad data; every outcome is a
// Status on the result:
//
//	OK            field found with a non-null value
//	NoData        no message received on the topic yet
//	Malformed     latest payload is not valid JSON
//	FieldMissing  valid document without the requested field
//
// A field name is first matched as a literal top-level key, so keys such as
// "temp.c" or "rate?" work as sent. Otherwise it is read as a gjson path,
// so nested values ("data.temperature") and array indexes ("readings.0")
// also work.
//
// Every view carries the session state at query time so that stale data
// can be recognised as such.
package query
