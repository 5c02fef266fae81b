package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"

	"github.com/ragkit/ragserver/internal/ingest"
)

// GitHub fetches text documents from a directory of a GitHub repository.
type GitHub struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
}

// NewGitHub creates a fetcher for owner/repo limited to basePath. Requests
// go through a rate-limit-aware transport; if GITHUB_TOKEN is set the
// client authenticates for higher limits.
func NewGitHub(owner, repo, basePath string) (*GitHub, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHub{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// FetchAll lists every text document under the base path and downloads its
// content. Document sources are "owner/repo/relative-path" so repeated
// syncs of the same repository replace prior generations.
func (g *GitHub) FetchAll(ctx context.Context) ([]ingest.RawDocument, error) {
	paths, err := g.listRecursive(ctx, g.basePath, "")
	if err != nil {
		return nil, err
	}

	docs := make([]ingest.RawDocument, 0, len(paths))
	for _, rel := range paths {
		text, err := g.fetchFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		docs = append(docs, ingest.RawDocument{
			Source: fmt.Sprintf("%s/%s/%s", g.owner, g.repo, path.Join(g.basePath, rel)),
			Text:   text,
		})
	}
	return docs, nil
}

// LatestCommitSHA returns the SHA of the most recent commit touching the
// base path, for logging which revision was ingested.
func (g *GitHub) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo,
		&github.CommitsListOptions{
			Path:        g.basePath,
			ListOptions: github.ListOptions{PerPage: 1},
		})
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for path %s", g.basePath)
	}
	return *commits[0].SHA, nil
}

func (g *GitHub) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	_, dirContents, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	var files []string
	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}
		itemRel := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if textExtensions[strings.ToLower(path.Ext(*item.Name))] {
				files = append(files, itemRel)
			}
		case "dir":
			sub, err := g.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRel)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

func (g *GitHub) fetchFile(ctx context.Context, relativePath string) (string, error) {
	fullPath := path.Join(g.basePath, relativePath)

	fileContent, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return "", fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", fullPath, err)
	}
	return string(content), nil
}
