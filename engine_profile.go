package stayAuth

import (
	"context"
	"errors"
	"fmt"
)

// Me returns the public view of the user.
func (e *Engine) Me(ctx context.Context, userID string) (PublicUser, error) {
	if e == nil || e.users == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return PublicUser{}, ErrUserNotFound
		}
		return PublicUser{}, fmt.Errorf("load user: %w", err)
	}
	return ToPublicView(user), nil
}

// UpdateProfile changes name and phone. Email and role are not editable
// here.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (PublicUser, error) {
	if e == nil || e.users == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	user, err := e.users.UpdateProfile(ctx, userID, req.toUpdate())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return PublicUser{}, ErrUserNotFound
		}
		return PublicUser{}, fmt.Errorf("update profile: %w", err)
	}
	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, user.ID, user.Email, nil, nil)
	return ToPublicView(user), nil
}
