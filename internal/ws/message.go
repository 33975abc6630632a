package ws

import (
	"time"

	"skill-exchange/internal/delivery/http/dto"
)

const (
	MessageTypeSnapshot = "matches_snapshot"
	MessageTypeError    = "error"
)

type SnapshotMessage struct {
	Type      string              `json:"type"`
	Version   uint64              `json:"version"`
	Matches   []dto.MatchResponse `json:"matches"`
	Timestamp string              `json:"timestamp"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
