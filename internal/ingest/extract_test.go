package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/warranty-intake/internal/model"
)

func TestExtract_CurrentSchema(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"message": {
			"call": {"id": "call-123", "customer": {"number": "+15551234567"}},
			"artifact": {"transcript": "hi, my water heater is leaking"},
			"analysis": {
				"structuredData": {
					"propertyAddress": "123 Main St, Seattle, WA 98101",
					"homeownerName": "Dana Brooks",
					"phoneNumber": "555-123-4567",
					"issueDescription": "water heater leaking",
					"callIntent": "warranty_issue",
					"isUrgent": true
				}
			}
		}
	}`)

	r := Extract(body)
	assert.Equal(t, "call-123", r.ExternalCallID)
	assert.Equal(t, "+15551234567", r.CallerPhone)
	assert.Equal(t, "hi, my water heater is leaking", r.Transcript)
	assert.Equal(t, "123 Main St, Seattle, WA 98101", r.Fields.PropertyAddress)
	assert.Equal(t, "Dana Brooks", r.Fields.HomeownerName)
	assert.Equal(t, "water heater leaking", r.Fields.IssueDescription)
	assert.Equal(t, model.IntentWarrantyIssue, r.Fields.Intent)
	assert.True(t, r.Fields.IsUrgent)
}

func TestExtract_LegacySchemas(t *testing.T) {
	t.Parallel()

	// Older vendor revisions put structured output at different roots and
	// used snake_case keys.
	payloads := []string{
		`{"call":{"id":"call-9"},"analysis":{"structuredData":{"property_address":"9 Oak Ln","call_intent":"warranty_issue"}}}`,
		`{"callId":"call-9","structuredData":{"address":"9 Oak Ln","intent":"warranty_issue"}}`,
		`{"message":{"callId":"call-9","functionCall":{"parameters":{"propertyAddress":"9 Oak Ln","callIntent":"warranty_issue"}}}}`,
	}

	for _, body := range payloads {
		r := Extract([]byte(body))
		assert.Equal(t, "call-9", r.ExternalCallID, body)
		assert.Equal(t, "9 Oak Ln", r.Fields.PropertyAddress, body)
		assert.Equal(t, model.IntentWarrantyIssue, r.Fields.Intent, body)
	}
}

func TestExtract_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	// Both roots carry an address; the earlier probe location wins.
	body := []byte(`{
		"message":{"analysis":{"structuredData":{"propertyAddress":"1 First St"}}},
		"structuredData":{"propertyAddress":"2 Second St"}
	}`)
	r := Extract(body)
	assert.Equal(t, "1 First St", r.Fields.PropertyAddress)
}

func TestExtract_MissingFieldsStayZero(t *testing.T) {
	t.Parallel()

	r := Extract([]byte(`{"message":{"call":{"id":"call-1"}}}`))
	assert.Equal(t, "call-1", r.ExternalCallID)
	assert.Empty(t, r.Fields.PropertyAddress)
	assert.Empty(t, r.Fields.HomeownerName)
	assert.Equal(t, model.IntentGeneralQuestion, r.Fields.Intent)
	assert.False(t, r.Fields.IsUrgent)
}

func TestExtract_UnknownIntentDefaults(t *testing.T) {
	t.Parallel()

	r := Extract([]byte(`{"call":{"id":"c"},"structuredData":{"callIntent":"mystery"}}`))
	assert.Equal(t, model.IntentGeneralQuestion, r.Fields.Intent)
}

func TestMerge_FillsOnlyEmptyFields(t *testing.T) {
	t.Parallel()

	local := model.ExtractedFields{
		HomeownerName: "Dana Brooks",
		Intent:        model.IntentGeneralQuestion,
	}
	fetched := model.ExtractedFields{
		PropertyAddress: "123 Main St",
		HomeownerName:   "Wrong Name",
		Intent:          model.IntentWarrantyIssue,
		IsUrgent:        true,
	}

	merged := Merge(local, fetched)
	assert.Equal(t, "123 Main St", merged.PropertyAddress)
	assert.Equal(t, "Dana Brooks", merged.HomeownerName, "local value is not overwritten")
	assert.Equal(t, model.IntentWarrantyIssue, merged.Intent)
	assert.True(t, merged.IsUrgent)
}

func TestCandidateHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    string
	}{
		{"123 Main St, Seattle, WA 98101", "98101"},
		{"123 Main Street Seattle WA", "WA"},
		{"123 Main Street Seattle", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, candidateHint(tt.address), tt.address)
	}
}
