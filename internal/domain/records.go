package domain

import "time"

// Record is a single item in an action result payload.
type Record interface {
	record()
}

// Repository summarizes a repository.
type Repository struct {
	FullName    string    `json:"fullName"`
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language,omitempty"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	OpenIssues  int       `json:"openIssues"`
	Private     bool      `json:"private,omitempty"`
	Archived    bool      `json:"archived,omitempty"`
	URL         string    `json:"url"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Issue summarizes an issue.
type Issue struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	State    string   `json:"state"`
	Author   string   `json:"author"`
	Labels   []string `json:"labels,omitempty"`
	Comments int      `json:"comments"`
	URL      string   `json:"url"`
}

// PullRequest summarizes a pull request.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Author string `json:"author"`
	Draft  bool   `json:"draft,omitempty"`
	Head   string `json:"head"`
	Base   string `json:"base"`
	URL    string `json:"url"`
}

// Branch summarizes a branch.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected,omitempty"`
	SHA       string `json:"sha"`
}

// Commit summarizes a commit.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// User summarizes a user or organization account.
type User struct {
	Login       string    `json:"login"`
	Name        string    `json:"name,omitempty"`
	Type        string    `json:"type,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	PublicRepos int       `json:"publicRepos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Repository) record()  {}
func (Issue) record()       {}
func (PullRequest) record() {}
func (Branch) record()      {}
func (Commit) record()      {}
func (User) record()        {}
