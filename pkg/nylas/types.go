package nylas

// SyncResponse is the reply to POST /delta/sync. The remote prepares the
// sync window asynchronously; Ready flips once the window is available
// and SyncUpdatedToken is the initial cursor.
type SyncResponse struct {
	Ready            bool   `json:"ready"`
	SyncUpdatedToken string `json:"syncUpdatedToken"`
}

// SyncUpdatedResponse is one page of the change feed. NextDeltaToken, when
// present, is the new read position; NextPageToken continues the current
// page chain. A page with no NextPageToken ends pagination.
type SyncUpdatedResponse struct {
	Records        []EmailRecord `json:"records"`
	NextDeltaToken string        `json:"nextDeltaToken,omitempty"`
	NextPageToken  string        `json:"nextPageToken,omitempty"`
}

// Participant is a name/address pair on a message.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment carries only what the mirror consumes: its presence.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// EmailRecord is a single changed message in the feed. ID is the internet
// message id used for de-duplication; Date is epoch seconds.
type EmailRecord struct {
	ID          string        `json:"id"`
	Subject     string        `json:"subject"`
	Date        int64         `json:"date"`
	Body        string        `json:"body"`
	Snippet     string        `json:"snippet"`
	From        []Participant `json:"from"`
	To          []Participant `json:"to"`
	Attachments []Attachment  `json:"attachments"`
}

// Webhook is a provider-side subscription.
type Webhook struct {
	ID          string   `json:"id"`
	CallbackURL string   `json:"callbackUrl"`
	State       string   `json:"state"`
	Triggers    []string `json:"triggers"`
}

// WebhookList is the reply to GET /webhooks.
type WebhookList struct {
	Records []Webhook `json:"records"`
}

// SendEmailRequest is the outbound send payload, passed through to the
// provider unchanged.
type SendEmailRequest struct {
	From       Participant   `json:"from"`
	To         []Participant `json:"to"`
	Cc         []Participant `json:"cc,omitempty"`
	Bcc        []Participant `json:"bcc,omitempty"`
	ReplyTo    *Participant  `json:"replyTo,omitempty"`
	Subject    string        `json:"subject"`
	Body       string        `json:"body"`
	InReplyTo  string        `json:"inReplyTo,omitempty"`
	References string        `json:"references,omitempty"`
	ThreadID   string        `json:"threadId,omitempty"`
}

// Triggers of interest for mailbox change notifications.
var MessageTriggers = []string{"message.created", "message.updated", "message.deleted"}
