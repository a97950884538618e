package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxCandidates bounds the number of passwords tried per document.
// Every attempt costs a full parse and key derivation.
const DefaultMaxCandidates = 16

// DefaultPasswords is tried when the caller supplies no candidates. The
// trailing empty string opens documents that have no user password.
var DefaultPasswords = []string{"1234", "12345", "0000", "1111", ""}

var errNotEncrypted = errors.New("document is not encrypted")

var disableConfigDir sync.Once

// Unlocked is the outcome of a successful Resolve
type Unlocked struct {
	Data      []byte
	Encrypted bool
	// PasswordIndex is the position of the candidate that opened the
	// document, or -1 when it was not encrypted.
	PasswordIndex int
	Attempts      int
}

// Resolver removes PDF encryption by trying candidate passwords in order
type Resolver struct {
	maxCandidates int
	logger        *slog.Logger
}

// NewResolver creates a resolver. A non-positive maxCandidates selects
// DefaultMaxCandidates.
func NewResolver(maxCandidates int, logger *slog.Logger) *Resolver {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// MaxCandidates returns the per-document candidate limit
func (r *Resolver) MaxCandidates() int {
	return r.maxCandidates
}

// Resolve returns raw with its encryption removed. The first candidate that
// opens the document wins. When no candidate applies, raw is returned
// unchanged provided it opens as an unencrypted PDF; otherwise the error is
// a *PipelineError of kind KindUnlock.
func (r *Resolver) Resolve(ctx context.Context, raw []byte, candidates []string) (*Unlocked, error) {
	if len(candidates) > r.maxCandidates {
		r.logger.Warn("Dropping password candidates over limit",
			"supplied", len(candidates), "limit", r.maxCandidates)
		candidates = candidates[:r.maxCandidates]
	}

	attempts := 0
	var lastErr error
	for i, password := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		data, err := decryptWith(raw, password)
		if errors.Is(err, errNotEncrypted) {
			// No other candidate can change that; raw already opened cleanly.
			r.logger.Debug("Document is not encrypted", "attempt", attempts)
			return &Unlocked{Data: raw, PasswordIndex: -1, Attempts: attempts}, nil
		}
		if err != nil {
			r.logger.Debug("Password candidate rejected", "index", i, "error", err)
			lastErr = err
			continue
		}

		r.logger.Debug("Password candidate accepted", "index", i)
		return &Unlocked{Data: data, Encrypted: true, PasswordIndex: i, Attempts: attempts}, nil
	}

	if err := openPlain(raw); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, unlockError("resolve", attempts, lastErr)
	}

	return &Unlocked{Data: raw, PasswordIndex: -1, Attempts: attempts}, nil
}

// decryptWith opens raw with password and writes it back without encryption.
// The context read to check the password is the one written out, so an
// accepted candidate costs a single parse.
func decryptWith(raw []byte, password string) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	ctx, err := api.ReadContext(bytes.NewReader(raw), passwordConfig(password))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if ctx.Encrypt == nil {
		return nil, errNotEncrypted
	}

	// Same steps as api.Decrypt, minus the second read.
	ctx.Cmd = model.DECRYPT
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate: %w", err)
	}
	if err := api.OptimizeContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to optimize: %w", err)
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return out.Bytes(), nil
}

// openPlain checks that raw parses as an unencrypted PDF
func openPlain(raw []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	if len(raw) == 0 {
		return errors.New("document is empty")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(raw), conf)
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}
	if ctx.Encrypt != nil {
		return errors.New("document is encrypted")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return fmt.Errorf("failed to ensure page count: %w", err)
	}
	return nil
}

func passwordConfig(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}
