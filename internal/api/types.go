package api

// User is the API's user representation.
type User struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image"`
}

// Post is one board post.  List responses leave Content empty.
type Post struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	Content            string `json:"content"`
	Image              string `json:"image"`
	AuthorNickname     string `json:"author_nickname"`
	AuthorProfileImage string `json:"author_profile_image"`
	CreatedAt          string `json:"created_at"`
	Likes              int    `json:"likes"`
	ViewCount          int    `json:"view_count"`
	CommentCount       int    `json:"comment_count"`
}

// Comment belongs to one post.
type Comment struct {
	ID                 int64  `json:"id"`
	Content            string `json:"content"`
	AuthorNickname     string `json:"author_nickname"`
	AuthorProfileImage string `json:"author_profile_image"`
	CreatedAt          string `json:"created_at"`
}

// SignupRequest is the body of POST /users/signup.  ProfileImage is the
// filename returned by UploadProfileImage, or "".
type SignupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image"`
}

// UserUpdate is the body of PATCH /users/{id}.
type UserUpdate struct {
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// PostInput is the body of POST /posts and PATCH /posts/{id}.
type PostInput struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	PostImage string `json:"post_image,omitempty"`
}

// CheckResult is the uniqueness-check response.  Older API builds send only
// Message; Available is set when the API reports availability explicitly.
type CheckResult struct {
	Message   string `json:"message"`
	Available *bool  `json:"available,omitempty"`
}
