package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListPosts returns the board index.
func (c *Client) ListPosts(ctx context.Context, creds Credentials) ([]Post, error) {
	var out []Post
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/posts", creds: creds, out: &out})
	return out, err
}

// GetPost returns one post.  The API counts this as a view.
func (c *Client) GetPost(ctx context.Context, creds Credentials, id int64) (Post, error) {
	var out Post
	_, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/posts/%d", id), creds: creds, out: &out})
	return out, err
}

// CreatePost publishes a post and returns it as echoed by the API.  Some API
// builds answer 201 with only a message; ID is then zero.
func (c *Client) CreatePost(ctx context.Context, creds Credentials, in PostInput) (Post, error) {
	var out Post
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/posts", creds: creds, body: in, out: &out})
	return out, err
}

// UpdatePost edits a post.
func (c *Client) UpdatePost(ctx context.Context, creds Credentials, id int64, in PostInput) error {
	_, err := c.do(ctx, call{method: http.MethodPatch, path: fmt.Sprintf("/posts/%d", id), creds: creds, body: in})
	return err
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, creds Credentials, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: fmt.Sprintf("/posts/%d", id), creds: creds})
	return err
}

// ListComments returns every comment of a post, oldest first.
func (c *Client) ListComments(ctx context.Context, creds Credentials, postID int64) ([]Comment, error) {
	var out []Comment
	_, err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/posts/%d/comments", postID), creds: creds, out: &out})
	return out, err
}

// CreateComment adds a comment.
func (c *Client) CreateComment(ctx context.Context, creds Credentials, postID int64, content string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/posts/%d/comments", postID),
		creds:  creds,
		body:   map[string]string{"content": content},
	})
	return err
}

// UpdateComment edits a comment.
func (c *Client) UpdateComment(ctx context.Context, creds Credentials, postID, commentID int64, content string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/posts/%d/comments/%d", postID, commentID),
		creds:  creds,
		body:   map[string]string{"content": content},
	})
	return err
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, creds Credentials, postID, commentID int64) error {
	_, err := c.do(ctx, call{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/posts/%d/comments/%d", postID, commentID),
		creds:  creds,
	})
	return err
}
