package storage

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"taskboard/domain"
)

type accountEntity struct {
	entity
	UserID       string `json:"UserId"`
	PasswordHash string `json:"PasswordHash"`
	CreatedAt    string `json:"CreatedAt"`
}

type profileEntity struct {
	entity
	Email     string `json:"Email"`
	FullName  string `json:"FullName"`
	Username  string `json:"Username"`
	CreatedAt string `json:"CreatedAt"`
}

func decodeAccount(data []byte) (domain.Account, error) {
	var ent accountEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Account{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{UserID: ent.UserID, Email: ent.RowKey, PasswordHash: ent.PasswordHash, CreatedAt: created}, nil
}

// InsertAccount registers credentials keyed by normalized email.
func (s *Storage) InsertAccount(ctx context.Context, a domain.Account) error {
	email := domain.NormalizeEmail(a.Email)
	payload, err := sonic.Marshal(accountEntity{
		entity:       entity{PartitionKey: email, RowKey: email},
		UserID:       a.UserID,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if _, err := s.accountTable.AddEntity(ctx, payload, nil); err != nil {
		if code, _, ok := statusCode(err); ok && code == http.StatusConflict {
			return &domain.ValidationError{Fields: map[string]string{"email": "Email is already registered"}}
		}
		return mapErr("insert account", "account", email, err)
	}
	return nil
}

// GetAccount looks up credentials by email.
func (s *Storage) GetAccount(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	resp, err := s.accountTable.GetEntity(ctx, email, email, nil)
	if err != nil {
		return domain.Account{}, mapErr("get account", "account", email, err)
	}
	return decodeAccount(resp.Value)
}

// UpdatePasswordHash merges a new hash into the account row.
func (s *Storage) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	email = domain.NormalizeEmail(email)
	payload, err := sonic.Marshal(struct {
		entity
		PasswordHash string `json:"PasswordHash"`
	}{entity{PartitionKey: email, RowKey: email}, hash})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.accountTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return mapErr("update account", "account", email, err)
}

// DeleteAccount removes the credentials row.
func (s *Storage) DeleteAccount(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	et := azcore.ETagAny
	_, err := s.accountTable.DeleteEntity(ctx, email, email, &aztables.DeleteEntityOptions{IfMatch: &et})
	return mapErr("delete account", "account", email, err)
}

// UpsertProfile creates or replaces the public profile row.
func (s *Storage) UpsertProfile(ctx context.Context, p domain.Profile) error {
	payload, err := sonic.Marshal(profileEntity{
		entity:    entity{PartitionKey: p.UserID, RowKey: p.UserID},
		Email:     p.Email,
		FullName:  p.FullName,
		Username:  p.Username,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = s.profileTable.UpsertEntity(ctx, payload, nil)
	return mapErr("upsert profile", "profile", p.UserID, err)
}

// GetProfile returns the profile row of userID.
func (s *Storage) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	resp, err := s.profileTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		return domain.Profile{}, mapErr("get profile", "profile", userID, err)
	}
	var ent profileEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Profile{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{UserID: ent.RowKey, Email: ent.Email, FullName: ent.FullName, Username: ent.Username, CreatedAt: created}, nil
}

// DeleteProfile removes the profile row. A missing row is not an error.
func (s *Storage) DeleteProfile(ctx context.Context, userID string) error {
	et := azcore.ETagAny
	_, err := s.profileTable.DeleteEntity(ctx, userID, userID, &aztables.DeleteEntityOptions{IfMatch: &et})
	if code, _, ok := statusCode(err); ok && code == http.StatusNotFound {
		return nil
	}
	return mapErr("delete profile", "profile", userID, err)
}
