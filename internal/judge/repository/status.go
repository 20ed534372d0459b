package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/judge/model"
	appErr "codearena/pkg/errors"
)

const statusKeyPrefix = "judge:status:"

// StatusRepository keeps the live status document of in-flight judging runs
// in the cache, readable while a run is still executing.
type StatusRepository struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStatusRepository creates a status repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StatusRepository{cache: cacheClient, ttl: ttl}
}

// Get returns the status document by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.StatusDocument, error) {
	if submissionID == "" {
		return model.StatusDocument{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.StatusDocument{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil || val == "" {
		return model.StatusDocument{}, appErr.New(appErr.SubmissionNotFound).WithMessage("submission status not found")
	}
	var doc model.StatusDocument
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return model.StatusDocument{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return doc, nil
}

// Save writes the status document.
func (r *StatusRepository) Save(ctx context.Context, doc model.StatusDocument) error {
	if doc.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	doc.UpdatedAt = time.Now().Unix()
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+doc.SubmissionID, string(data), r.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}
