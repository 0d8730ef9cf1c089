package dto

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a chat completion constrained to a strict JSON schema.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	SchemaName  string
	Schema      map[string]interface{}
	Temperature float64
	MaxTokens   int
}

type CategoryResponse struct {
	Category string `json:"category"`
}

type ExtractionResponse struct {
	EmailAddress   string `json:"email_address"`
	CustomerName   string `json:"customer_name"`
	IssueType      string `json:"issue_type"`
	CategoryDetail string `json:"category_detail"`
	ProductService string `json:"product_service"`
	Summary        string `json:"summary"`
	Sentiment      string `json:"sentiment"`
}
