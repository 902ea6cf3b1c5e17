package auth

import "github.com/yanizio/forum/internal/api"

func apiUser() api.User {
	return api.User{UserID: 7, Email: "a@b.co", Nickname: "nick"}
}
