package github

import "time"

// Identity is the author/committer identity stamped on fabricated commits.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommitResult describes the remote commit produced by an upsert.
type CommitResult struct {
	SHA    string `json:"sha"`
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

// UpsertOptions tunes a single file upsert.
type UpsertOptions struct {
	Branch     string     // default branch when empty
	CustomDate *time.Time // forces the low-level backdated commit path
	Author     *Identity  // identity for backdated commits
}

// Wire payloads for the provider's REST API.

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type viewerResponse struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type updateFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type updateFileResponse struct {
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type commitObjectResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
	HTMLURL string `json:"html_url"`
}

type createBlobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createBlobResponse struct {
	SHA string `json:"sha"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type createTreeRequest struct {
	BaseTree string      `json:"base_tree"`
	Tree     []treeEntry `json:"tree"`
}

type createTreeResponse struct {
	SHA string `json:"sha"`
}

type commitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

type createCommitRequest struct {
	Message   string       `json:"message"`
	Tree      string       `json:"tree"`
	Parents   []string     `json:"parents"`
	Author    commitAuthor `json:"author"`
	Committer commitAuthor `json:"committer"`
}

type createCommitResponse struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
}

type updateRefRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}
