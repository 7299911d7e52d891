package service

import (
	"context"

	"github.com/nutriplan/nutriplan/internal/domain/user"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/integration/kiwify"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/samber/lo"
)

// UserResolver maps an upstream subscription to a local user id. It lives for
// one sync run: email lookups, including misses, are cached for that run.
type UserResolver struct {
	users     user.Repository
	logger    *logger.Logger
	allowList map[string]struct{}
	byEmail   map[string]string
}

// NewUserResolver restricts results to allowList when it is non-empty
func NewUserResolver(users user.Repository, log *logger.Logger, allowList []string) *UserResolver {
	var allowed map[string]struct{}
	if len(allowList) > 0 {
		allowed = lo.SliceToMap(allowList, func(id string) (string, struct{}) { return id, struct{}{} })
	}
	return &UserResolver{
		users:     users,
		logger:    log,
		allowList: allowed,
		byEmail:   make(map[string]string),
	}
}

// Resolve returns the local user id, preferring an id embedded by checkout
// over a lookup by customer email
func (r *UserResolver) Resolve(ctx context.Context, payload kiwify.Payload) (string, bool) {
	if id := kiwify.ResolveExternalUserID(payload); id != "" {
		return r.filter(id)
	}

	email := kiwify.ExtractCustomerEmail(payload)
	if email == "" {
		return "", false
	}

	if id, ok := r.byEmail[email]; ok {
		return r.filter(id)
	}

	id, err := r.users.FindIDByEmail(ctx, email)
	if err != nil {
		if !ierr.IsNotFound(err) {
			r.logger.WithContext(ctx).Warnw("user lookup by email failed", "email", email, "error", err)
		}
		id = ""
	}
	r.byEmail[email] = id

	return r.filter(id)
}

func (r *UserResolver) filter(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	if r.allowList != nil {
		if _, ok := r.allowList[id]; !ok {
			return "", false
		}
	}
	return id, true
}
