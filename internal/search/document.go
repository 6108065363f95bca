package search

import (
	"fmt"
	"time"

	"mailbridge-backend/internal/mail/domain"
)

// DocumentFromEmail derives the search document for one mirrored email.
// The embedding vector is supplied by the caller so document construction
// stays independent of the provider.
func DocumentFromEmail(email *domain.Email, vector []float32) Document {
	from := ""
	if email.From != nil {
		from = fmt.Sprintf("%s <%s>", email.From.Name, email.From.Address)
	}

	return Document{
		ID:         email.ID,
		Title:      email.Subject,
		Body:       email.BodySnippet,
		RawBody:    email.Body,
		From:       from,
		To:         []string{},
		SentAt:     email.SentAt.Format(time.RFC3339),
		Embeddings: vector,
		ThreadID:   email.ThreadID,
	}
}

// EmbeddingText is the text fed to the embedding provider for an email.
func EmbeddingText(email *domain.Email) string {
	return fmt.Sprintf("Subject: %s\n\nBody: %s", email.Subject, email.BodySnippet)
}
