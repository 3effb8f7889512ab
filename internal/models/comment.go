package models

// Decision is a moderator verdict on an AI suggestion.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is one of the two accepted verdicts.
func (d Decision) Valid() bool {
	return d == DecisionAccepted || d == DecisionRejected
}

// Comment is one entry in a ticket's discussion thread.
type Comment struct {
	CommentID     ID               `json:"commentId,omitempty"`
	MongoID       ID               `json:"_id,omitempty"`
	Body          string           `json:"body"`
	CreatedAt     Timestamp        `json:"createdAt"`
	IsAIGenerated bool             `json:"isAiGenerated"`
	Role          string           `json:"role,omitempty"`
	Author        *UserRef         `json:"author,omitempty"`
	Metadata      *CommentMetadata `json:"metadata,omitempty"`
}

// CommentMetadata carries the moderation outcome and AI follow-ups.
type CommentMetadata struct {
	Decision      Decision       `json:"decision,omitempty"`
	DecisionAt    Timestamp      `json:"decisionAt"`
	FollowUpTasks []FollowUpTask `json:"followUpTasks,omitempty"`
}

// FollowUpTask is a task proposed alongside an AI suggestion.
type FollowUpTask struct {
	Title string `json:"title"`
}

// NormalizedID prefers commentId and falls back to _id.
func (c Comment) NormalizedID() string {
	if c.CommentID != "" {
		return c.CommentID.String()
	}
	return c.MongoID.String()
}

// Decision returns the recorded decision, if any.
func (c Comment) Decision() Decision {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata.Decision
}

// BodyOrDefault returns the body or a placeholder for empty comments.
func (c Comment) BodyOrDefault() string {
	if c.Body == "" {
		return "No content provided."
	}
	return c.Body
}

func (c Comment) clone() Comment {
	out := c
	if c.Author != nil {
		author := *c.Author
		out.Author = &author
	}
	if c.Metadata != nil {
		meta := *c.Metadata
		if c.Metadata.FollowUpTasks != nil {
			meta.FollowUpTasks = append([]FollowUpTask(nil), c.Metadata.FollowUpTasks...)
		}
		out.Metadata = &meta
	}
	return out
}
