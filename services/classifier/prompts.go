package classifier

import (
	"fmt"
	"strings"

	"github.com/customeros/mailingest/internal/enum"
)

const (
	categorySchemaName  = "email_category_schema"
	categoryTemperature = 0.1
	categoryMaxTokens   = 50
)

func systemPrompt() string {
	return fmt.Sprintf(
		"You are an expert email categorization assistant. Analyze the email details provided by the user "+
			"and classify it into one of the following categories: %s. "+
			"Your response MUST be a JSON object strictly adhering to the provided schema, with a single key \"category\" "+
			"whose value is one of the listed categories.",
		strings.Join(enum.CategoryNames(), ", "),
	)
}

func userPrompt(sender, subject, snippet string) string {
	return fmt.Sprintf("Sender: %s\nSubject: %s\nBody Snippet: %s\n\nPlease categorize this email.", sender, subject, snippet)
}

func categorySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{
				"type": "string",
				"enum": enum.CategoryNames(),
			},
		},
		"required":             []string{"category"},
		"additionalProperties": false,
	}
}
