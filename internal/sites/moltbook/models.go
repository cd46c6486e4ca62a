package moltbook

// VerifyRequest submits a solved challenge for a pending post.
type VerifyRequest struct {
	VerificationCode string `json:"verification_code"`
	Answer           string `json:"answer"`
}

// PostRequest creates a new post in a submolt.
type PostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Submolt string `json:"submolt"`
}

// CommentRequest creates a comment on a post.
type CommentRequest struct {
	Content string `json:"content"`
}
