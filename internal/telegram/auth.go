package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tgcore/internal/domain"
)

// setPhoneNumber asks Telegram for a login code and reports which phase
// follows.
func (b *Backend) setPhoneNumber(ctx context.Context, phone string) (domain.AuthPhase, error) {
	sent, err := b.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return 0, fmt.Errorf("send code: %w", err)
	}
	b.phone = phone

	switch s := sent.(type) {
	case *tg.AuthSentCode:
		b.codeHash = s.PhoneCodeHash
		return domain.PhaseWaitCode, nil
	case *tg.AuthSentCodeSuccess:
		return domain.PhaseReady, nil
	default:
		return 0, fmt.Errorf("send code: unexpected response %T", sent)
	}
}

func (b *Backend) checkCode(ctx context.Context, code string) (domain.AuthPhase, error) {
	if b.codeHash == "" {
		return 0, rejected(400, "PHONE_NUMBER_REQUIRED")
	}

	_, err := b.client.Auth().SignIn(ctx, b.phone, code, b.codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return domain.PhaseWaitPassword, nil
	}
	var signUp *auth.SignUpRequired
	if errors.As(err, &signUp) {
		return 0, rejected(400, "SIGN_UP_REQUIRED")
	}
	if err != nil {
		return 0, fmt.Errorf("sign in: %w", err)
	}
	return domain.PhaseReady, nil
}

func (b *Backend) checkPassword(ctx context.Context, password string) (domain.AuthPhase, error) {
	if _, err := b.client.Auth().Password(ctx, password); err != nil {
		return 0, fmt.Errorf("check password: %w", err)
	}
	return domain.PhaseReady, nil
}
