package utils

import (
	"fmt"
	"os/user"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RunIDPrefix is prepended to every run ID.
const RunIDPrefix = "run-"

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRunID returns an ID that groups the ledger records of one migrate run.
func NewRunID() (string, error) {
	id, err := nanoid.Generate(idAlphabet, 12)
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return RunIDPrefix + id, nil
}

// CurrentUser is the OS user name, or "unknown".
func CurrentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}
