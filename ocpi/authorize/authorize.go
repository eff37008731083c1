// Package authorize decides real-time token authorization requests.
package authorize

import (
	"context"
	"emsp/entity"
	"emsp/internal"
	"emsp/utility"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownToken = errors.New("unknown token")

const defaultTimeout = 5 * time.Second

type Request struct {
	CountryCode string                    `json:"country_code"`
	PartyId     string                    `json:"party_id"`
	TokenUid    string                    `json:"token_uid"`
	TokenType   entity.TokenType          `json:"token_type"`
	Location    *entity.LocationReference `json:"location,omitempty"`
}

// Hook takes over the decision from the local token rules when set.
type Hook interface {
	Authorize(ctx context.Context, req *Request) (*entity.AuthorizationInfo, error)
}

type Tokens interface {
	Lookup(ctx context.Context, uid string) (*entity.TokenStatus, bool, error)
}

type Locations interface {
	EvseUids(ctx context.Context, countryCode, partyId, locationId string) ([]string, bool, error)
}

type Engine struct {
	tokens    Tokens
	locations Locations
	hook      Hook
	timeout   time.Duration
	logger    internal.LogHandler
}

func New(tokens Tokens, locations Locations, logger internal.LogHandler) *Engine {
	return &Engine{
		tokens:    tokens,
		locations: locations,
		timeout:   defaultTimeout,
		logger:    logger,
	}
}

// SetHook routes every decision through hook, each call bounded by timeout.
func (e *Engine) SetHook(hook Hook, timeout time.Duration) {
	e.hook = hook
	if timeout > 0 {
		e.timeout = timeout
	}
}

// Authorize returns a decision, or ErrUnknownToken when the local rules do not
// know the token. Hook failures are logged and end in BLOCKED.
func (e *Engine) Authorize(ctx context.Context, req *Request) (*entity.AuthorizationInfo, error) {
	start := time.Now()
	var info *entity.AuthorizationInfo
	if e.hook != nil {
		info = e.callHook(ctx, req)
	} else {
		var err error
		info, err = e.local(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if info == nil || info.Allowed == "" {
		info = &entity.AuthorizationInfo{Allowed: entity.Blocked}
	}
	info = withText(info)
	info.Runtime = time.Since(start)
	return info, nil
}

func (e *Engine) callHook(ctx context.Context, req *Request) *entity.AuthorizationInfo {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type answer struct {
		info *entity.AuthorizationInfo
		err  error
	}
	rc := make(chan answer, 1)
	go func() {
		info, err := e.hook.Authorize(ctx, req)
		rc <- answer{info, err}
	}()

	select {
	case res := <-rc:
		if res.err != nil {
			e.logger.Error(fmt.Sprintf("authorize hook: token %s", req.TokenUid), res.err)
			return nil
		}
		return res.info
	case <-ctx.Done():
		e.logger.Error(fmt.Sprintf("authorize hook: token %s", req.TokenUid), ctx.Err())
		return nil
	}
}

func (e *Engine) local(ctx context.Context, req *Request) (*entity.AuthorizationInfo, error) {
	status, found, err := e.tokens.Lookup(ctx, req.TokenUid)
	if err != nil {
		return nil, fmt.Errorf("token lookup: %w", err)
	}
	if !found || status.Token.Type != req.TokenType {
		return nil, ErrUnknownToken
	}

	if req.Location == nil {
		return &entity.AuthorizationInfo{
			Allowed:  status.Status,
			Location: status.Location.Clone(),
		}, nil
	}

	available, found, err := e.locations.EvseUids(ctx, req.CountryCode, req.PartyId, req.Location.LocationId)
	if err != nil {
		return nil, fmt.Errorf("location lookup: %w", err)
	}
	if !found {
		return notAllowed(textUnknownLocation), nil
	}

	scope := &entity.LocationReference{LocationId: req.Location.LocationId}
	if len(req.Location.EvseUids) > 0 {
		scope.EvseUids = utility.Intersect(req.Location.EvseUids, available)
		if len(scope.EvseUids) == 0 {
			if len(utility.Unique(req.Location.EvseUids)) == 1 {
				return notAllowed(textUnknownEvse), nil
			}
			return notAllowed(textUnknownEvses), nil
		}
	}
	return &entity.AuthorizationInfo{
		Allowed:  status.Status,
		Location: scope,
	}, nil
}
