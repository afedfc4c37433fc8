// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"os/user"
	"strings"

	"github.com/toeirei/serverbase/internal/model"
)

// currentUsername returns the OS login without a Windows domain prefix.
func currentUsername() string {
	curUser, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
		return parts[1]
	}
	return curUser.Username
}

// LogAction appends an audit entry attributed to the current OS user.
func (s *BunStore) LogAction(ctx context.Context, action, details string) error {
	_, err := ExecRaw(ctx, s.bun, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", currentUsername(), action, details)
	return MapDBError(err)
}

// AuditLog returns the newest entries first. A limit of zero returns all.
func (s *BunStore) AuditLog(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	var rows []AuditLogModel
	q := s.bun.NewSelect().Model(&rows).OrderExpr("al.timestamp DESC, al.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !notFound(err) {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(rows))
	for _, a := range rows {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
	}
	return out, nil
}
