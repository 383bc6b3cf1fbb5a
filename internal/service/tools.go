package service

import (
	"strings"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/google/uuid"
)

// normalizeOp - операция нечувствительна к регистру и пробелам
func normalizeOp(op string) model.TransformOp {
	return model.TransformOp(strings.ToLower(strings.TrimSpace(op)))
}

func validateTransformRequest(req *model.TransformRequest) (model.TransformOp, error) {
	op := normalizeOp(req.Op)
	if !model.TransformOpsMap[op] {
		return "", model.ErrIncorrectOp
	}
	if len(req.Indices) == 0 {
		return "", model.ErrEmptySelection
	}
	return op, nil
}

// resolve translates indices into identities, ignoring indices outside the collection.
func (c DeskService) resolve(indices []int) ([]uuid.UUID, error) {
	if len(indices) == 0 {
		return nil, model.ErrEmptySelection
	}
	ids := c.coll.IDs(indices)
	if len(ids) == 0 {
		return nil, model.ErrUnresolvedRecord
	}
	return ids, nil
}
