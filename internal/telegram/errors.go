package telegram

import (
	"errors"

	"github.com/gotd/td/tgerr"

	"github.com/danhigham/tgcore/internal/domain"
)

func rejected(code int, message string) *domain.BackendError {
	return &domain.BackendError{Code: code, Message: message}
}

// backendError maps err onto the wire error shape. Telegram RPC errors keep
// their code and type, anything else is reported as an internal failure.
func backendError(err error) *domain.BackendError {
	var be *domain.BackendError
	if errors.As(err, &be) {
		return be
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return rejected(rpcErr.Code, rpcErr.Type)
	}
	return rejected(500, err.Error())
}
