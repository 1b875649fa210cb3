package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"barnlabs/api/internal/models"
	"barnlabs/api/internal/security"
)

// ErrAccessDenied means no strategy granted the read.
var ErrAccessDenied = errors.New("access denied")

type Strategy string

const (
	StrategyBearer   Strategy = "bearer"
	StrategyShare    Strategy = "share_referral"
	StrategyURLToken Strategy = "url_token"
)

// AccessRequest carries the trust inputs a proxy read may present. Any of
// the three may be empty.
type AccessRequest struct {
	BearerToken string
	Referer     string
	URLToken    string
}

// Grant records which strategy allowed the read. UserID is set only for the
// bearer path; the other strategies do not identify a user.
type Grant struct {
	Strategy Strategy
	UserID   string
}

type shareGetter interface {
	GetByID(ctx context.Context, id string) (models.Share, error)
}

// AccessResolver evaluates the trust strategies for an asset read in fixed
// order, short-circuiting on the first grant: bearer credential, then share
// referral, then scoped URL token. Referral trust is intentionally weaker
// than a credential and the scoped token is the narrowest-privilege path,
// so the order is part of the contract. Every strategy is a pure read.
type AccessResolver struct {
	shares  shareGetter
	users   userGetter
	secrets []string
	now     func() time.Time
}

func NewAccessResolver(shares shareGetter, users userGetter, secrets []string) *AccessResolver {
	return &AccessResolver{
		shares:  shares,
		users:   users,
		secrets: secrets,
		now:     time.Now,
	}
}

// Resolve returns the first grant, or ErrAccessDenied when every strategy
// fails. A strategy failure never aborts evaluation.
func (r *AccessResolver) Resolve(ctx context.Context, req AccessRequest, asset models.Asset) (Grant, error) {
	if grant, ok := r.tryBearer(ctx, req.BearerToken, asset); ok {
		return grant, nil
	}
	if grant, ok := r.tryShareReferral(ctx, req.Referer, asset); ok {
		return grant, nil
	}
	if grant, ok := r.tryURLToken(req.URLToken, asset); ok {
		return grant, nil
	}
	return Grant{}, ErrAccessDenied
}

func (r *AccessResolver) tryBearer(ctx context.Context, token string, asset models.Asset) (Grant, bool) {
	if token == "" {
		return Grant{}, false
	}

	claims, err := security.ParseAccessToken(token, r.secrets)
	if err != nil {
		return Grant{}, false
	}

	user, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return Grant{}, false
	}

	if user.IsAdmin || user.ID == asset.OwnerID || asset.AdminShared() {
		return Grant{Strategy: StrategyBearer, UserID: user.ID}, true
	}
	return Grant{}, false
}

func (r *AccessResolver) tryShareReferral(ctx context.Context, referer string, asset models.Asset) (Grant, bool) {
	shareID := ShareIDFromReferer(referer)
	if shareID == "" {
		return Grant{}, false
	}

	share, err := r.shares.GetByID(ctx, shareID)
	if err != nil {
		return Grant{}, false
	}
	if share.Expired(r.now()) {
		return Grant{}, false
	}

	if share.OwnerID == asset.OwnerID || asset.AdminShared() {
		return Grant{Strategy: StrategyShare}, true
	}
	return Grant{}, false
}

func (r *AccessResolver) tryURLToken(token string, asset models.Asset) (Grant, bool) {
	if token == "" {
		return Grant{}, false
	}
	if err := security.VerifyAssetToken(token, asset.Key, r.secrets); err != nil {
		return Grant{}, false
	}
	return Grant{Strategy: StrategyURLToken}, true
}

// ShareIDFromReferer extracts a share id from a referring page path of the
// form .../s/<id>. Anything else yields the empty string.
func ShareIDFromReferer(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	if segments[len(segments)-2] != "s" {
		return ""
	}
	return segments[len(segments)-1]
}
