package models

// GitHubProfile is the identity the portal learns from GitHub at sign-in
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName returns the profile name, falling back to the login
func (p *GitHubProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

// UserSyncRequest is the body of POST /auth/github/login on the unrepo backend
type UserSyncRequest struct {
	GitHubID       string `json:"githubId"`
	GitHubUsername string `json:"githubUsername"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Avatar         string `json:"avatar"`
}
