// Package types provides the shared data model for agent responses.
// The shapes mirror the agent backend's JSON contract so recorded responses
// can be decoded directly; every optional field tolerates absence.
package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// =============================================================================
// RAW RESPONSE
// =============================================================================

// RawResponse is the payload returned by one agent invocation.
type RawResponse struct {
	// OutputText may be plain text, text with placeholder tokens, or a
	// JSON envelope carrying the answer in a "result" field.
	OutputText string `json:"output_text"`

	// Citations is empty when the backend attached no attributions.
	Citations []CitationRecord `json:"citations,omitempty"`

	// Trace maps backend phase keys to ordered trace fragments.
	Trace Trace `json:"trace,omitempty"`

	// Diagnostics records parts of the payload that had an unexpected
	// shape and were dropped while decoding.
	Diagnostics []Diagnostic `json:"-"`
}

// UnmarshalJSON decodes the response leniently. Only a payload that is not a
// JSON object fails; a wrongly typed field is dropped with a diagnostic so
// the answer text survives.
func (r *RawResponse) UnmarshalJSON(b []byte) error {
	var fields struct {
		OutputText json.RawMessage `json:"output_text"`
		Citations  json.RawMessage `json:"citations"`
		Trace      json.RawMessage `json:"trace"`
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*r = RawResponse{}
	if len(fields.OutputText) > 0 && !isNull(fields.OutputText) {
		if err := json.Unmarshal(fields.OutputText, &r.OutputText); err != nil {
			r.OutputText = string(fields.OutputText)
			r.Diagnostics = append(r.Diagnostics, Diagnosticf("response", "output_text is not a string; showing it verbatim"))
		}
	}

	r.Citations, r.Diagnostics = appendCitations(nil, r.Diagnostics, fields.Citations)

	if len(fields.Trace) > 0 && !isNull(fields.Trace) {
		if t := bytes.TrimSpace(fields.Trace); len(t) == 0 || t[0] != '{' {
			r.Diagnostics = append(r.Diagnostics, Diagnosticf("trace", "trace is not an object; ignored"))
		} else if err := json.Unmarshal(fields.Trace, &r.Trace); err != nil {
			r.Diagnostics = append(r.Diagnostics, Diagnosticf("trace", "unreadable trace ignored: %v", err))
		}
	}
	return nil
}

// DecodeCitations decodes a citations list one record at a time. Records
// that fail to decode are skipped and reported as diagnostics.
func DecodeCitations(raw json.RawMessage) ([]CitationRecord, []Diagnostic) {
	return appendCitations(nil, nil, raw)
}

func appendCitations(recs []CitationRecord, diags []Diagnostic, raw json.RawMessage) ([]CitationRecord, []Diagnostic) {
	if len(raw) == 0 || isNull(raw) {
		return recs, diags
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return recs, append(diags, Diagnosticf("citation", "citations is not a list; ignored"))
	}
	for i, item := range items {
		var rec CitationRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			diags = append(diags, Diagnosticf("citation", "citation %d has an unexpected shape: %v", i+1, err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, diags
}

// HasCitations reports whether the direct citations list is non-empty.
func (r RawResponse) HasCitations() bool {
	return len(r.Citations) > 0
}

// =============================================================================
// CITATIONS
// =============================================================================

// CitationRecord pairs one generated answer part with its supporting references.
type CitationRecord struct {
	GeneratedResponsePart *GeneratedResponsePart `json:"generatedResponsePart,omitempty"`
	RetrievedReferences   []RetrievedReference   `json:"retrievedReferences,omitempty"`
}

// FirstReference returns the first retrieved reference of the record.
// Inline link resolution only ever looks at this one.
func (c CitationRecord) FirstReference() (RetrievedReference, bool) {
	if len(c.RetrievedReferences) == 0 {
		return RetrievedReference{}, false
	}
	return c.RetrievedReferences[0], true
}

// GeneratedResponsePart is the slice of the answer a citation supports.
type GeneratedResponsePart struct {
	TextResponsePart *TextResponsePart `json:"textResponsePart,omitempty"`
}

// TextResponsePart is the cited answer text and its character span.
type TextResponsePart struct {
	Text string `json:"text"`
	Span *Span  `json:"span,omitempty"`
}

// Span is a half-open character range inside the answer text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RetrievedReference is one source document chunk returned by retrieval.
type RetrievedReference struct {
	Content  *ReferenceContent `json:"content,omitempty"`
	Location *Location         `json:"location,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// ReferenceContent holds the retrieved chunk text.
type ReferenceContent struct {
	Text string `json:"text"`
}

// Snippet returns the retrieved text, or "" when absent.
func (r RetrievedReference) Snippet() string {
	if r.Content == nil {
		return ""
	}
	return r.Content.Text
}

// LocatorScheme identifies which location variant a reference used.
type LocatorScheme string

const (
	SchemeNone       LocatorScheme = ""
	SchemeS3         LocatorScheme = "s3"
	SchemeWeb        LocatorScheme = "web"
	SchemeConfluence LocatorScheme = "confluence"
	SchemeSalesforce LocatorScheme = "salesforce"
	SchemeSharePoint LocatorScheme = "sharepoint"
)

// Location is the storage address of a retrieved reference.
// Exactly one variant is expected to be set.
type Location struct {
	Type               string       `json:"type,omitempty"`
	S3Location         *S3Location  `json:"s3Location,omitempty"`
	WebLocation        *URLLocation `json:"webLocation,omitempty"`
	ConfluenceLocation *URLLocation `json:"confluenceLocation,omitempty"`
	SalesforceLocation *URLLocation `json:"salesforceLocation,omitempty"`
	SharePointLocation *URLLocation `json:"sharePointLocation,omitempty"`
}

// S3Location addresses an object in private storage.
type S3Location struct {
	URI string `json:"uri"`
}

// URLLocation addresses a document that already has a public URL.
type URLLocation struct {
	URL string `json:"url"`
}

// Locator returns the raw locator string and the variant it came from.
// An empty locator means the reference carries no usable address.
func (l *Location) Locator() (string, LocatorScheme) {
	if l == nil {
		return "", SchemeNone
	}
	switch {
	case l.S3Location != nil && strings.TrimSpace(l.S3Location.URI) != "":
		return l.S3Location.URI, SchemeS3
	case l.WebLocation != nil && strings.TrimSpace(l.WebLocation.URL) != "":
		return l.WebLocation.URL, SchemeWeb
	case l.ConfluenceLocation != nil && strings.TrimSpace(l.ConfluenceLocation.URL) != "":
		return l.ConfluenceLocation.URL, SchemeConfluence
	case l.SalesforceLocation != nil && strings.TrimSpace(l.SalesforceLocation.URL) != "":
		return l.SalesforceLocation.URL, SchemeSalesforce
	case l.SharePointLocation != nil && strings.TrimSpace(l.SharePointLocation.URL) != "":
		return l.SharePointLocation.URL, SchemeSharePoint
	}
	return "", SchemeNone
}
