package api

import "tix/internal/models"

// ErrorResponse is the backend's JSON error wrapper.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusUpdateRequest is the body of PATCH /ticket/{id}/status.
type StatusUpdateRequest struct {
	Status models.Status `json:"status"`
}

// CommentCreateRequest is the body of POST /ticket/{id}/comments.
type CommentCreateRequest struct {
	Body string `json:"body"`
}

// DecisionRequest is the body of PATCH /ticket/{id}/comments/{commentId}/decision.
type DecisionRequest struct {
	Decision models.Decision `json:"decision"`
}
