package wire

import (
	"strings"
	"unicode/utf8"

	qerr "github.com/lineflux/qdbsender/errors"
	"github.com/lineflux/qdbsender/internal/protocol"
)

// validateName enforces the table/column naming rules from spec.md §4.2:
// non-empty, within maxNameLen UTF-8 bytes, free of the separator/control
// blacklist, and free of leading/trailing/adjacent dots. kind names the
// caller in error messages ("table", "symbol" or "column").
func validateName(kind, name string, maxNameLen int) error {
	if name == "" {
		return qerr.Newf(qerr.InvalidName, "%s name must not be empty", kind)
	}
	if len(name) > maxNameLen {
		return qerr.Newf(qerr.InvalidName, "%s name %q is %d bytes, exceeding max_name_len of %d", kind, name, len(name), maxNameLen)
	}
	if !utf8.ValidString(name) {
		return qerr.Newf(qerr.InvalidUtf8, "%s name %q is not valid UTF-8", kind, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") || strings.Contains(name, "..") {
		return qerr.Newf(qerr.InvalidName, "%s name %q must not start, end with, or repeat '.'", kind, name)
	}
	for _, r := range name {
		if r == protocol.ByteOrderMark {
			return qerr.Newf(qerr.InvalidName, "%s name %q must not contain U+FEFF", kind, name)
		}
		if r == 0x7f || (r < 0x20) {
			return qerr.Newf(qerr.InvalidName, "%s name %q must not contain control characters", kind, name)
		}
		if strings.ContainsRune(protocol.NameForbiddenChars, r) {
			return qerr.Newf(qerr.InvalidName, "%s name %q must not contain %q", kind, name, string(r))
		}
	}
	return nil
}

// validateColumnName additionally forbids '-' and '.', per §4.2's symbol
// and column naming rules.
func validateColumnName(kind, name string, maxNameLen int) error {
	if err := validateName(kind, name, maxNameLen); err != nil {
		return err
	}
	if strings.ContainsAny(name, "-.") {
		return qerr.Newf(qerr.InvalidName, "%s name %q must not contain '-' or '.'", kind, name)
	}
	return nil
}
