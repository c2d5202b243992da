package sqlstore

import "github.com/goliatone/go-identity-gateway/core"

var (
	_ core.UserStore           = (*UserStore)(nil)
	_ core.SessionStore        = (*SessionStore)(nil)
	_ core.RepositoryLinkStore = (*LinkStore)(nil)
)
