package storage

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

type settingsEntity struct {
	entity
	Theme string `json:"theme,omitempty"`
}

func decodeSettingsEntity(data []byte) (domain.Theme, error) {
	var ent settingsEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return "", err
	}
	return domain.Theme(ent.Theme), nil
}

// GetTheme returns the stored theme of userID, or "" when none was saved.
func (s *Storage) GetTheme(ctx context.Context, userID string) (domain.Theme, error) {
	resp, err := s.settingTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if code, _, ok := statusCode(err); ok && code == http.StatusNotFound {
			return "", nil
		}
		return "", mapErr("get settings", "settings", userID, err)
	}
	return decodeSettingsEntity(resp.Value)
}

// SaveTheme stores theme under the owner's settings row.
func (s *Storage) SaveTheme(ctx context.Context, userID string, theme domain.Theme) error {
	payload, err := sonic.Marshal(settingsEntity{entity: entity{PartitionKey: userID, RowKey: userID}, Theme: string(theme)})
	if err != nil {
		return err
	}
	_, err = s.settingTable.UpsertEntity(ctx, payload, nil)
	return mapErr("save settings", "settings", userID, err)
}
