package model

import (
	"fmt"
	"strings"
)

// Intent - classified purpose of an image prompt
type Intent string

const (
	IntentNew  Intent = "new"
	IntentEdit Intent = "edit"
)

// ParseIntent - exact, case-insensitive match of "new" or "edit" (surrounding space ignored)
func ParseIntent(s string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(IntentNew):
		return IntentNew, true
	case string(IntentEdit):
		return IntentEdit, true
	}
	return "", false
}

// Mode - generate-image request mode; auto delegates to the intent classifier
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
)

// ParseMode - empty means auto; anything else outside auto/new/edit is an error
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeNew, ModeEdit:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q (use auto, new or edit)", s)
}

// Job status values shared by the async video queue
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	// StatusUserCancelled is terminal; a cancelled job is never overwritten with completed.
	StatusUserCancelled = "user_cancelled"
)
