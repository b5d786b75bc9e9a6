package handler

import (
	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
)

// RedactResponse is the success body of POST /redact.
type RedactResponse struct {
	Success            bool                      `json:"success"`
	OriginalEntityType string                    `json:"original_entity_type"`
	OriginalEntityID   string                    `json:"original_entity_id"`
	ViewerRole         string                    `json:"viewer_role"`
	Data               document.Value            `json:"data"`
	RedactionsApplied  int                       `json:"redactions_applied"`
	RedactionDetails   []models.AppliedRedaction `json:"redaction_details"`
}

func newRedactResponse(req models.Request, result *models.Result) RedactResponse {
	details := result.Applied
	if details == nil {
		details = []models.AppliedRedaction{}
	}
	return RedactResponse{
		Success:            true,
		OriginalEntityType: req.EntityType.String(),
		OriginalEntityID:   req.EntityID,
		ViewerRole:         req.ViewerRole,
		Data:               result.Data,
		RedactionsApplied:  len(details),
		RedactionDetails:   details,
	}
}
