package handlers

import (
	"context"

	"github.com/onnwee/forcemap/internal/logger"
)

// LogPprofAccess records profiling endpoint hits. Profiles expose heap
// contents, so access is worth an audit trail even behind the admin token.
func LogPprofAccess(ctx context.Context, path, remoteAddr string) {
	logger.InfoContext(ctx, "Profiling endpoint accessed",
		"endpoint", path,
		"remote_addr", remoteAddr,
		"type", "security_audit")
}
