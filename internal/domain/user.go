package domain

// UserSummary is the id/displayName projection of a directory user.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
