package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/badminton-platform/models"
)

const archivePrefix = "matches/"

// MatchArchiver writes terminal match records to object storage as JSON.
type MatchArchiver struct {
	store ObjectStore
}

func NewMatchArchiver(store ObjectStore) *MatchArchiver {
	return &MatchArchiver{store: store}
}

func ArchiveKey(matchID string) string {
	return archivePrefix + matchID + ".json"
}

// ArchiveMatch stores the record and returns its public URL, empty when the
// bucket has no public base URL.
func (a *MatchArchiver) ArchiveMatch(ctx context.Context, match *models.MatchRecord) (string, error) {
	if !match.Status.Terminal() {
		return "", fmt.Errorf("match %s is still %s", match.ID, match.Status)
	}

	body, err := json.Marshal(match)
	if err != nil {
		return "", fmt.Errorf("failed to encode match %s: %w", match.ID, err)
	}
	result, err := a.store.Put(ctx, ArchiveKey(match.ID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to archive match %s: %w", match.ID, err)
	}
	if result.Location != "" {
		return result.Location, nil
	}
	return a.store.GetPublicURL(result.Key), nil
}
