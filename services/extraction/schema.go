package extraction

import "fmt"

const (
	schemaName  = "complaint_extraction_schema"
	temperature = 0.0

	IssueTypeNotApplicable = "NotApplicable"
)

var (
	issueTypes = []string{"Complaint", "Suggestion", "Query", "Feedback", IssueTypeNotApplicable}
	sentiments = []string{"Positive", "Negative", "Neutral", "Mixed"}
)

const systemPrompt = "You are an assistant that processes customer feedback. Analyze the following email. " +
	"If it is a complaint or suggestion, extract its details into the specified JSON format using the provided schema. " +
	"If not, return an empty JSON object or a JSON object with an 'issue_type' of 'NotApplicable'."

func userPrompt(sender, subject, body string) string {
	return fmt.Sprintf("Email Content:\nSender: %s\nSubject: %s\nBody: %s", sender, subject, body)
}

func extractionSchema() map[string]interface{} {
	str := func() map[string]interface{} { return map[string]interface{}{"type": "string"} }
	enumOf := func(values []string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "enum": values}
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"email_address":   str(),
			"customer_name":   str(),
			"issue_type":      enumOf(issueTypes),
			"category_detail": str(),
			"product_service": str(),
			"summary":         str(),
			"sentiment":       enumOf(sentiments),
		},
		"required":             []string{"email_address", "issue_type", "summary", "sentiment"},
		"additionalProperties": false,
	}
}
