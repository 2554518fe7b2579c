package proofs

import (
	"strconv"
	"strings"

	xerrors "PQ-Bitcoin/internal/errors"
)

const (
	// CodeFormat marks an input whose byte length does not match its fixed width.
	CodeFormat xerrors.Code = "FORMAT_ERROR"
	// CodeCryptoParse marks key or signature bytes that do not decode to a curve element.
	CodeCryptoParse xerrors.Code = "CRYPTO_PARSE_ERROR"
	// CodeVerification marks a signature or address check that did not hold.
	CodeVerification xerrors.Code = "VERIFICATION_FAILED"
)

var (
	ErrFormat       = xerrors.New(CodeFormat, "input has wrong byte length")
	ErrCryptoParse  = xerrors.New(CodeCryptoParse, "malformed key or signature")
	ErrVerification = xerrors.New(CodeVerification, "claim verification failed")
)

func init() {
	xerrors.Register(CodeFormat, xerrors.Attributes{
		Message:  "input has wrong byte length",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeCryptoParse, xerrors.Attributes{
		Message:  "malformed key or signature",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeVerification, xerrors.Attributes{
		Message:  "claim verification failed",
		Severity: xerrors.SeverityWarning,
	})
}

// formatError lists every accepted width in the "want" metadata, comma separated.
func formatError(field string, got int, want ...int) error {
	widths := make([]string, len(want))
	for i, w := range want {
		widths[i] = strconv.Itoa(w)
	}
	return xerrors.New(CodeFormat, field+" has wrong length",
		xerrors.WithMetadata("field", field),
		xerrors.WithMetadata("got", strconv.Itoa(got)),
		xerrors.WithMetadata("want", strings.Join(widths, ",")),
	)
}

func parseError(field string, cause error) error {
	return xerrors.Wrap(CodeCryptoParse, cause, "cannot parse "+field, xerrors.WithMetadata("field", field))
}

func verificationError(stage, reason string) error {
	return xerrors.New(CodeVerification, reason, xerrors.WithMetadata("stage", stage))
}

// IsRejection reports whether err is one of the kernel's fail-closed outcomes.
func IsRejection(err error) bool {
	switch xerrors.CodeOf(err) {
	case CodeFormat, CodeCryptoParse, CodeVerification:
		return true
	}
	return false
}
