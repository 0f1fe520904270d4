package handlers

import "time"

// IssueLinkRequest is the request body for issuing a link.
type IssueLinkRequest struct {
	Body struct {
		DocumentID string `doc:"The document to share"                  example:"doc-1" json:"documentId"`
		TTLHours   int    `doc:"How long the link stays valid, in hours" example:"24"    json:"ttlHours"`
	}
}

// IssueDocumentLinkRequest issues a link for the document in the path.
type IssueDocumentLinkRequest struct {
	DocumentID string `doc:"The document to share" example:"doc-1" path:"documentId"`
	Body       struct {
		ExpiryHours int `doc:"How long the link stays valid, in hours" example:"24" json:"expiryHours"`
	}
}

// IssueLinkResponse is the response for a newly issued link.
type IssueLinkResponse struct {
	Headers struct {
		Location string `doc:"The link resource" header:"Location"`
	}
	Body struct {
		LinkID    string    `doc:"The link id"                 example:"V1StGXR8_Z5jdHi6B-myT" json:"linkId"`
		URL       string    `doc:"The shareable access URL"    json:"url"`
		ExpiresAt time.Time `doc:"When the link stops working" json:"expiresAt"`
	}
}

// GetLinkRequest is the request for looking up a link.
type GetLinkRequest struct {
	LinkID string `doc:"The link id" example:"V1StGXR8_Z5jdHi6B-myT" path:"linkId"`
}

// GetLinkResponse is the response for an active link.
type GetLinkResponse struct {
	Body struct {
		LinkID     string    `doc:"The link id"                 json:"linkId"`
		DocumentID string    `doc:"The shared document"         json:"documentId"`
		URL        string    `doc:"The shareable access URL"    json:"url"`
		ExpiresAt  time.Time `doc:"When the link stops working" json:"expiresAt"`
	}
}
