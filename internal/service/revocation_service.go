package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/models"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
	"github.com/noah-isme/auth-session-api/pkg/jobs"
)

type revocationRepository interface {
	Insert(ctx context.Context, entry *models.RevocationEntry) error
	Exists(ctx context.Context, tokenID string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const revocationJobType = "revocation.record"

// RevocationConfig tunes the retry queue used for failed ledger writes.
type RevocationConfig struct {
	RetryWorkers  int
	RetryAttempts int
	RetryDelay    time.Duration
}

// RevocationService is the ledger of token ids invalidated before their natural expiry.
type RevocationService struct {
	repo    revocationRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	retry   *jobs.Queue
	now     func() time.Time
}

// NewRevocationService constructs the ledger. cache and metrics may be nil.
func NewRevocationService(repo revocationRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg RevocationConfig) *RevocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RevocationService{repo: repo, cache: cache, metrics: metrics, logger: logger, now: time.Now}
	s.retry = jobs.NewQueue("revocations", s.handleRetry, jobs.QueueConfig{
		Workers:    cfg.RetryWorkers,
		MaxRetries: cfg.RetryAttempts,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDiscard:  s.handleDiscard,
	})
	return s
}

// Start launches the retry workers.
func (s *RevocationService) Start(ctx context.Context) {
	s.retry.Start(ctx)
}

// Stop drains the retry workers.
func (s *RevocationService) Stop() {
	s.retry.Stop()
}

func revokedCacheKey(tokenID string) string {
	return "revoked:" + tokenID
}

// Record inserts entry into the ledger. Duplicate ids are accepted.
func (s *RevocationService) Record(ctx context.Context, entry models.RevocationEntry) error {
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		return err
	}
	s.remember(ctx, entry.TokenID, entry.ExpiresAt)
	return nil
}

// RecordAsync hands entry to the retry queue.
func (s *RevocationService) RecordAsync(entry models.RevocationEntry) error {
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = s.now().UTC()
	}
	return s.retry.Enqueue(jobs.Job{ID: uuid.NewString(), Type: revocationJobType, Payload: entry})
}

// Revoke records entry and falls back to the retry queue when the write fails.
// The caller's flow never fails because of the ledger.
func (s *RevocationService) Revoke(ctx context.Context, entry models.RevocationEntry) {
	err := s.Record(ctx, entry)
	if err == nil {
		return
	}
	s.metrics.RecordLedgerFailure("record")
	s.logger.Warn("revocation ledger write failed, retrying asynchronously",
		zap.String("token_id", entry.TokenID), zap.String("kind", string(entry.Kind)), zap.Error(err))
	if qerr := s.RecordAsync(entry); qerr != nil {
		s.metrics.RecordLedgerFailure("enqueue")
		s.logger.Error("revocation retry enqueue failed", zap.String("token_id", entry.TokenID), zap.Error(qerr))
	}
}

// IsRevoked reports whether tokenID has a live ledger entry. A store failure is
// returned as Unavailable so callers fail closed.
func (s *RevocationService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var cached bool
	if hit, _ := s.cache.Get(ctx, revokedCacheKey(tokenID), &cached); hit && cached {
		return true, nil
	}

	revoked, err := s.repo.Exists(ctx, tokenID, s.now().UTC())
	if err != nil {
		s.metrics.RecordLedgerFailure("lookup")
		s.logger.Error("revocation ledger lookup failed", zap.String("token_id", tokenID), zap.Error(err))
		return false, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "revocation check unavailable")
	}
	return revoked, nil
}

// PurgeExpired deletes entries whose tokens have expired.
func (s *RevocationService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.metrics.RecordLedgerFailure("purge")
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return purged, nil
}

// StartPurger runs PurgeExpired every interval until ctx is cancelled.
func (s *RevocationService) StartPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.PurgeExpired(ctx)
				if err != nil {
					s.logger.Warn("revocation purge failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					s.logger.Info("revocation purge completed", zap.Int64("purged", purged))
				}
			}
		}
	}()
}

func (s *RevocationService) remember(ctx context.Context, tokenID string, expiresAt time.Time) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	_ = s.cache.Set(ctx, revokedCacheKey(tokenID), true, ttl)
}

func (s *RevocationService) handleRetry(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.RevocationEntry)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := s.repo.Insert(ctx, &entry); err != nil {
		return err
	}
	s.remember(ctx, entry.TokenID, entry.ExpiresAt)
	s.logger.Info("revocation recorded after retry", zap.String("token_id", entry.TokenID), zap.Int("attempt", job.Attempt))
	return nil
}

func (s *RevocationService) handleDiscard(job jobs.Job, err error) {
	s.metrics.RecordLedgerFailure("retry_exhausted")
	entry, _ := job.Payload.(models.RevocationEntry)
	s.logger.Error("revocation dropped after retries",
		zap.String("token_id", entry.TokenID), zap.String("account_id", entry.AccountID), zap.Error(err))
}
