package usecase

import (
	"context"
	"strings"
	"time"

	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	"swapit/pkg/errors"
)

// ProfileUseCase manages the per-user profile record the other
// components denormalize nicknames from.
type ProfileUseCase struct {
	store repository.RemoteStore
}

func NewProfileUseCase(store repository.RemoteStore) *ProfileUseCase {
	return &ProfileUseCase{store: store}
}

// Register writes the user's profile at first sign-in. Registering an
// already-registered user returns the existing profile unchanged.
func (uc *ProfileUseCase) Register(ctx context.Context, uid, nickname, email string) (*entity.UserProfile, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, errors.BadRequest("Nickname is required", nil)
	}
	if len(nickname) > maxNicknameLen {
		nickname = nickname[:maxNicknameLen]
	}

	var existing entity.UserProfile
	found, err := uc.store.Get(ctx, repository.UserProfilePath(uid), &existing)
	if err != nil {
		return nil, errors.Internal("Failed to read profile", err)
	}
	if found {
		return &existing, nil
	}

	profile := entity.UserProfile{
		Nickname:  nickname,
		Email:     strings.TrimSpace(email),
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := uc.store.Set(ctx, repository.UserProfilePath(uid), profile); err != nil {
		return nil, errors.Internal("Failed to write profile", err)
	}
	return &profile, nil
}

// UpdateNickname changes the profile nickname. Snapshots already
// denormalized onto items and conversations keep their old value.
func (uc *ProfileUseCase) UpdateNickname(ctx context.Context, uid, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return errors.BadRequest("Nickname is required", nil)
	}
	if len(nickname) > maxNicknameLen {
		nickname = nickname[:maxNicknameLen]
	}

	var existing entity.UserProfile
	found, err := uc.store.Get(ctx, repository.UserProfilePath(uid), &existing)
	if err != nil {
		return errors.Internal("Failed to read profile", err)
	}
	if !found {
		return errors.NotFound("Profile", nil)
	}

	if err := uc.store.Set(ctx, repository.UserNicknamePath(uid), nickname); err != nil {
		return errors.Internal("Failed to update nickname", err)
	}
	return nil
}

// Get reads the profile record.
func (uc *ProfileUseCase) Get(ctx context.Context, uid string) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	found, err := uc.store.Get(ctx, repository.UserProfilePath(uid), &profile)
	if err != nil {
		return nil, errors.Internal("Failed to read profile", err)
	}
	if !found {
		return nil, errors.NotFound("Profile", nil)
	}
	return &profile, nil
}
