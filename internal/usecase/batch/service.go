package batch

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ota-fleet-manager/internal/logger"
	firmwareUC "ota-fleet-manager/internal/usecase/firmware"
	appErrors "ota-fleet-manager/pkg/errors"
	"ota-fleet-manager/pkg/utils"
)

// maxConcurrent bounds the fan-out so a large selection cannot exhaust
// file handles or DB connections.
const maxConcurrent = 8

type itemResult struct {
	id  uuid.UUID
	err error
}

// Service runs the same catalog operation over a selection of firmwares.
// Items are independent: one failure never aborts or rolls back the rest.
type Service struct {
	firmwares *firmwareUC.Service
}

func NewService(firmwares *firmwareUC.Service) *Service {
	return &Service{firmwares: firmwares}
}

// Run executes req.Op against every id in the selection. IDs are
// de-duplicated and sorted before fan-out so repeated runs over the same
// selection report results in the same order.
func (s *Service) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidationError, "Invalid batch request", err)
	}

	ids := dedupeSorted(req.IDs)

	results := make([]itemResult, len(ids))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrent)

	for i, id := range ids {
		wg.Add(1)
		go func(slot int, id uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[slot] = itemResult{id: id, err: s.runOne(ctx, req.Op, id)}
		}(i, id)
	}
	wg.Wait()

	resp := &RunResponse{
		Succeeded: make([]uuid.UUID, 0, len(ids)),
		Failed:    make([]ItemFailure, 0),
		Total:     len(ids),
	}
	for _, r := range results {
		if r.err != nil {
			resp.Failed = append(resp.Failed, ItemFailure{ID: r.id, Code: appErrors.CodeOf(r.err)})
			continue
		}
		resp.Succeeded = append(resp.Succeeded, r.id)
	}

	logger.Info("Batch operation finished",
		zap.String("op", req.Op),
		zap.Int("total", resp.Total),
		zap.Int("succeeded", len(resp.Succeeded)),
		zap.Int("failed", len(resp.Failed)),
		zap.String("event", "batch_finished"),
	)

	return resp, nil
}

func (s *Service) runOne(ctx context.Context, op string, id uuid.UUID) error {
	switch op {
	case OpDelete:
		return s.firmwares.Delete(ctx, id)
	default:
		// Download in batch mode verifies the binary end to end; the
		// caller fetches the bytes per item afterwards.
		reader, _, err := s.firmwares.Download(ctx, id)
		if err != nil {
			return err
		}
		return reader.Close()
	}
}

func dedupeSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
