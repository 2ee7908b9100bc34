package ingest

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/warranty-intake/internal/model"
)

// The vendor's end-of-call report schema has moved around between revisions.
// Each field is probed against an ordered list of locations; the first
// non-empty hit wins and a miss just leaves the field empty.

// structuredRoots are the containers that have historically held the
// assistant's structured output.
var structuredRoots = []string{
	"message.analysis.structuredData",
	"message.call.analysis.structuredData",
	"analysis.structuredData",
	"message.functionCall.parameters",
	"structuredData",
}

var callIDPaths = []string{
	"message.call.id",
	"call.id",
	"message.callId",
	"callId",
}

var transcriptPaths = []string{
	"message.artifact.transcript",
	"message.transcript",
	"artifact.transcript",
	"transcript",
}

var callerPhonePaths = []string{
	"message.call.customer.number",
	"call.customer.number",
	"customer.number",
}

// Report is everything extraction pulls from one end-of-call payload.
type Report struct {
	ExternalCallID string
	CallerPhone    string
	Transcript     string
	Fields         model.ExtractedFields
}

// Extract probes the payload for every field the pipeline consumes. It never
// fails: absent fields stay zero-valued.
func Extract(body []byte) Report {
	return Report{
		ExternalCallID: firstString(body, callIDPaths),
		CallerPhone:    firstString(body, callerPhonePaths),
		Transcript:     firstString(body, transcriptPaths),
		Fields:         extractFields(body),
	}
}

func extractFields(body []byte) model.ExtractedFields {
	return model.ExtractedFields{
		PropertyAddress:  probeField(body, "propertyAddress", "property_address", "address"),
		HomeownerName:    probeField(body, "homeownerName", "homeowner_name", "callerName", "name"),
		PhoneNumber:      probeField(body, "phoneNumber", "phone_number", "callbackNumber"),
		IssueDescription: probeField(body, "issueDescription", "issue_description", "issue", "description"),
		Intent:           model.ParseIntent(probeField(body, "callIntent", "call_intent", "intent")),
		IsUrgent:         probeBool(body, "isUrgent", "is_urgent", "urgent"),
	}
}

// Merge fills empty fields in a with values from b: first non-empty wins
// across the local payload and the fallback fetch.
func Merge(a, b model.ExtractedFields) model.ExtractedFields {
	if a.PropertyAddress == "" {
		a.PropertyAddress = b.PropertyAddress
	}
	if a.HomeownerName == "" {
		a.HomeownerName = b.HomeownerName
	}
	if a.PhoneNumber == "" {
		a.PhoneNumber = b.PhoneNumber
	}
	if a.IssueDescription == "" {
		a.IssueDescription = b.IssueDescription
	}
	if a.Intent == model.IntentGeneralQuestion && b.Intent != model.IntentGeneralQuestion {
		a.Intent = b.Intent
	}
	a.IsUrgent = a.IsUrgent || b.IsUrgent
	return a
}

// probeField tries every structured-output root crossed with every key alias,
// in order.
func probeField(body []byte, keys ...string) string {
	for _, root := range structuredRoots {
		for _, key := range keys {
			if v := gjson.GetBytes(body, root+"."+key); v.Exists() {
				if s := strings.TrimSpace(v.String()); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func probeBool(body []byte, keys ...string) bool {
	for _, root := range structuredRoots {
		for _, key := range keys {
			if v := gjson.GetBytes(body, root+"."+key); v.Exists() {
				return v.Bool()
			}
		}
	}
	return false
}

func firstString(body []byte, paths []string) string {
	for _, path := range paths {
		if s := strings.TrimSpace(gjson.GetBytes(body, path).String()); s != "" {
			return s
		}
	}
	return ""
}

var zipRe = regexp.MustCompile(`\b\d{5}\b`)

// candidateHint derives a coarse prefilter token (zip code, or trailing
// two-letter state) from a spoken address, so the store never hands the
// resolver a full table scan. Empty when the address offers nothing coarse.
func candidateHint(address string) string {
	if zip := zipRe.FindString(address); zip != "" {
		return zip
	}
	fields := strings.Fields(strings.TrimRight(strings.TrimSpace(address), "."))
	if len(fields) > 0 {
		last := fields[len(fields)-1]
		if len(last) == 2 && isAlpha(last) {
			return last
		}
	}
	return ""
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
