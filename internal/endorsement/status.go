package endorsement

import (
	"errors"

	"IMS-backend/internal/platform/auth"
)

type Status string

const (
	StatusRequested  Status = "Requested"
	StatusForHTE     Status = "For HTE"
	StatusForStudent Status = "For Student"
	StatusApproved   Status = "Approved"
)

// FileSlot: 遷移時にファイルを書き込む列
type FileSlot string

const (
	SlotAdmin FileSlot = "admin"
	SlotHTE   FileSlot = "hte"
)

var ErrTransition = errors.New("endorsement: transition not allowed")

type step struct {
	actor auth.Role
	slot  FileSlot
	to    Status
	// ファイル必須か（管理者はコメントだけでも進められる）
	needsFile bool
}

var steps = map[Status]step{
	StatusRequested:  {actor: auth.RoleAdmin, slot: SlotAdmin, to: StatusForHTE},
	StatusForHTE:     {actor: auth.RoleHTE, slot: SlotHTE, to: StatusForStudent, needsFile: true},
	StatusForStudent: {actor: auth.RoleStudent, slot: SlotHTE, to: StatusApproved, needsFile: true},
}

// Next: from の状態で actor が行える遷移。それ以外は ErrTransition
func Next(from Status, actor auth.Role) (Status, FileSlot, bool, error) {
	s, ok := steps[from]
	if !ok || s.actor != actor {
		return "", "", false, ErrTransition
	}
	return s.to, s.slot, s.needsFile, nil
}

// ActorFor: その状態で次に動くロール（画面のボタン表示用）
func ActorFor(st Status) (auth.Role, bool) {
	s, ok := steps[st]
	return s.actor, ok
}
