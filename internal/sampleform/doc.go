// Package sampleform serves POST /api/submit-sample-form.
//
// The endpoint accepts a multipart form with three text fields and one file,
// checks that every field is present and acknowledges the upload by name.
// Nothing is stored and the file content is only sniffed for its type.
package sampleform
