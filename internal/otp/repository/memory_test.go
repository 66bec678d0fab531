package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"otp-verification-service/internal/otp/domain"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func challenge(id, account, device string, created time.Time) *domain.Challenge {
	return &domain.Challenge{
		ProcessID: id,
		AccountID: account,
		Email:     account + "@example.com",
		Purpose:   domain.PurposeVerification,
		CodeHash:  "hash",
		DeviceID:  device,
		CreatedAt: created,
		ExpiresAt: created.Add(5 * time.Minute),
		Valid:     true,
	}
}

func seed(t *testing.T, repo *MemoryRepository, cs ...*domain.Challenge) {
	t.Helper()
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, c := range cs {
			if err := tx.Create(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMemoryRepository_RollbackOnError(t *testing.T) {
	repo := NewMemoryRepository()
	boom := errors.New("boom")
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.Create(ctx, challenge("p1", "a1", "dev_1", baseTime)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want boom", err)
	}
	if repo.Len() != 0 {
		t.Errorf("Len = %d, want 0 after rollback", repo.Len())
	}
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo, challenge("p1", "a1", "dev_1", baseTime))
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Create(ctx, challenge("p1", "a1", "dev_1", baseTime))
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("duplicate create err = %v, want ErrStoreUnavailable", err)
	}
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := repo.InTx(ctx, func(ctx context.Context, tx Tx) error { return nil })
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestMemoryRepository_LatestActiveAndSupersede(t *testing.T) {
	repo := NewMemoryRepository()
	older := challenge("p1", "a1", "dev_1", baseTime)
	newer := challenge("p2", "a1", "dev_1", baseTime.Add(time.Minute))
	otherDevice := challenge("p3", "a1", "dev_2", baseTime.Add(2*time.Minute))
	seed(t, repo, older, newer, otherDevice)

	now := baseTime.Add(90 * time.Second)
	key := older.Key()
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		got, err := tx.LatestActive(ctx, key, now)
		if err != nil {
			return err
		}
		if got == nil || got.ProcessID != "p2" {
			t.Errorf("LatestActive = %+v, want p2", got)
		}
		n, err := tx.SupersedeActive(ctx, key, now)
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("SupersedeActive = %d, want 2", n)
		}
		got, err = tx.LatestActive(ctx, key, now)
		if err != nil {
			return err
		}
		if got != nil {
			t.Errorf("LatestActive after supersede = %+v, want nil", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if c := repo.Get("p2"); !c.ExpiresAt.Equal(now) {
		t.Errorf("superseded ExpiresAt = %v, want %v", c.ExpiresAt, now)
	}
	if c := repo.Get("p3"); !c.Active(now) {
		t.Error("challenge for another device should stay active")
	}
}

func TestMemoryRepository_SupersedeNeverEndsBeforeCreation(t *testing.T) {
	now := baseTime
	testCases := []struct {
		name    string
		created time.Time
		want    time.Time
	}{
		{"created earlier", now.Add(-time.Second), now},
		{"created same instant", now, now.Add(time.Microsecond)},
		{"created by a later writer", now.Add(2 * time.Millisecond), now.Add(2*time.Millisecond + time.Microsecond)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			c := challenge("p1", "a1", "dev_1", tc.created)
			seed(t, repo, c)
			err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
				_, err := tx.SupersedeActive(ctx, c.Key(), now)
				return err
			})
			if err != nil {
				t.Fatalf("InTx: %v", err)
			}
			got := repo.Get("p1")
			if !got.ExpiresAt.After(got.CreatedAt) {
				t.Errorf("ExpiresAt %v not after CreatedAt %v", got.ExpiresAt, got.CreatedAt)
			}
			if !got.ExpiresAt.Equal(tc.want) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, tc.want)
			}
		})
	}
}

func TestMemoryRepository_CreateRejectsExpiryNotAfterCreation(t *testing.T) {
	repo := NewMemoryRepository()
	c := challenge("p1", "a1", "dev_1", baseTime)
	c.ExpiresAt = c.CreatedAt
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Create(ctx, c)
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Create err = %v, want ErrStoreUnavailable", err)
	}
	if repo.Len() != 0 {
		t.Errorf("Len = %d, want 0", repo.Len())
	}
}

func TestMemoryRepository_LatestActive_PurposeScoped(t *testing.T) {
	repo := NewMemoryRepository()
	reset := challenge("p1", "a1", "dev_1", baseTime)
	reset.Purpose = domain.PurposeReset
	seed(t, repo, reset)

	key := reset.Key()
	key.Purpose = domain.PurposeVerification
	_ = repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		got, _ := tx.LatestActive(ctx, key, baseTime)
		if got != nil {
			t.Errorf("LatestActive for other purpose = %+v, want nil", got)
		}
		return nil
	})
}

func TestMemoryRepository_Counts(t *testing.T) {
	repo := NewMemoryRepository()
	seed(t, repo,
		challenge("p1", "a1", "dev_1", baseTime),
		challenge("p2", "a1", "dev_1", baseTime.Add(time.Minute)),
		challenge("p3", "a2", "dev_1", baseTime.Add(2*time.Minute)),
		challenge("p4", "a1", "dev_2", baseTime.Add(3*time.Minute)),
	)
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		n, _ := tx.CountByDeviceSince(ctx, "dev_1", baseTime.Add(-time.Second))
		if n != 3 {
			t.Errorf("CountByDeviceSince(dev_1) = %d, want 3", n)
		}
		n, _ = tx.CountByDeviceSince(ctx, "dev_1", baseTime)
		if n != 2 {
			t.Errorf("CountByDeviceSince is exclusive of since: got %d, want 2", n)
		}
		n, _ = tx.CountByAccountSince(ctx, "a1", baseTime.Add(-time.Second))
		if n != 3 {
			t.Errorf("CountByAccountSince(a1) = %d, want 3", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func TestMemoryRepository_GetForUpdateAndUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	c := challenge("p1", "a1", "dev_1", baseTime)
	seed(t, repo, c)

	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if got, _ := tx.GetForUpdate(ctx, "a2", c.Email, "p1"); got != nil {
			t.Error("GetForUpdate should not match another account")
		}
		got, err := tx.GetForUpdate(ctx, "a1", c.Email, "p1")
		if err != nil || got == nil {
			t.Fatalf("GetForUpdate = %v, %v", got, err)
		}
		got.Verified = true
		at := baseTime.Add(time.Minute)
		got.VerifiedAt = &at
		return tx.Update(ctx, got)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if !repo.Get("p1").Verified {
		t.Fatal("challenge should be verified")
	}

	err = repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		got, _ := tx.GetForUpdate(ctx, "a1", c.Email, "p1")
		got.FailedAttempts = 9
		return tx.Update(ctx, got)
	})
	if !errors.Is(err, ErrChallengeTerminal) {
		t.Fatalf("update of terminal row err = %v, want ErrChallengeTerminal", err)
	}
	if repo.Get("p1").FailedAttempts != 0 {
		t.Error("terminal row must not change")
	}
}

func TestMemoryRepository_DeleteStale(t *testing.T) {
	repo := NewMemoryRepository()
	live := challenge("live", "a1", "dev_1", baseTime.Add(4*time.Minute))
	expired := challenge("expired", "a1", "dev_1", baseTime.Add(-10*time.Minute))
	invalid := challenge("invalid", "a1", "dev_1", baseTime)
	invalid.Valid = false
	boundary := challenge("boundary", "a1", "dev_1", baseTime.Add(-5*time.Minute))
	seed(t, repo, live, expired, invalid, boundary)

	n, err := repo.DeleteStale(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteStale = %d, want 2", n)
	}
	if repo.Get("boundary") == nil {
		t.Error("challenge expiring exactly now is not removed until expires_at < now")
	}
	n, _ = repo.DeleteStale(context.Background(), baseTime)
	if n != 0 {
		t.Errorf("second DeleteStale = %d, want 0", n)
	}
}
