package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ScanDesk/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrRecordNotFound),
		errors.Is(err, model.ErrOperationNotFound):
		return 404
	case errors.Is(err, model.ErrDuplicateRecord):
		return 409
	case errors.Is(err, model.ErrIndexOutOfRange),
		errors.Is(err, model.ErrEmptySelection),
		errors.Is(err, model.ErrUnresolvedRecord),
		errors.Is(err, model.ErrIncorrectOp),
		errors.Is(err, model.ErrIncorrectJob),
		errors.Is(err, model.ErrIncorrectDir),
		errors.Is(err, model.ErrIncorrectSize),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrNilImage),
		errors.Is(err, model.ErrUnsupportedFormat):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
