package claims

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/warranty-intake/internal/model"
	"github.com/sells-group/warranty-intake/internal/store"
)

// fakeStore implements the claim-related slice of store.Store in memory.
// Unused Store methods panic via the embedded nil interface.
type fakeStore struct {
	store.Store

	mu      sync.Mutex
	counter int64
	open    *model.Claim
	created []model.Claim
}

func (f *fakeStore) OpenClaimSince(_ context.Context, homeownerID string, since time.Time) (*model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open != nil && f.open.HomeownerID == homeownerID && !f.open.CreatedAt.Before(since) {
		return f.open, nil
	}
	return nil, nil
}

func (f *fakeStore) NextClaimNumber(_ context.Context, _ string) (int64, error) {
	return atomic.AddInt64(&f.counter, 1), nil
}

func (f *fakeStore) CreateClaim(_ context.Context, claim *model.Claim) (*model.Claim, error) {
	out := *claim
	out.ID = uuid.NewString()
	out.CreatedAt = time.Now().UTC()
	f.mu.Lock()
	f.created = append(f.created, out)
	f.mu.Unlock()
	return &out, nil
}

func callRecord() *model.CallRecord {
	return &model.CallRecord{
		ExternalCallID: "call-123",
		IsUrgent:       true,
		Extracted: model.ExtractedFields{
			IssueDescription: "water heater leaking",
			Intent:           model.IntentWarrantyIssue,
		},
	}
}

func TestMaybeCreate_NewClaim(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	c := NewCreator(fs, 0)

	claim, err := c.MaybeCreate(context.Background(), "hw-1", callRecord())
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, int64(1), claim.ClaimNumber)
	assert.Equal(t, model.ClaimStatusIntake, claim.Status)
	assert.Equal(t, "water heater leaking", claim.Description)
	assert.Equal(t, "call-123", claim.SourceCallID)
	assert.True(t, claim.IsUrgent)
}

func TestMaybeCreate_DedupInsideWindow(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{
		open: &model.Claim{
			ID:          "claim-existing",
			HomeownerID: "hw-1",
			Status:      model.ClaimStatusIntake,
			CreatedAt:   time.Now().UTC().Add(-2 * time.Hour),
		},
	}
	c := NewCreator(fs, 24*time.Hour)

	claim, err := c.MaybeCreate(context.Background(), "hw-1", callRecord())
	require.NoError(t, err)
	assert.Nil(t, claim)
	assert.Empty(t, fs.created)
}

func TestMaybeCreate_OldClaimOutsideWindow(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{
		open: &model.Claim{
			ID:          "claim-old",
			HomeownerID: "hw-1",
			Status:      model.ClaimStatusIntake,
			CreatedAt:   time.Now().UTC().Add(-48 * time.Hour),
		},
	}
	c := NewCreator(fs, 24*time.Hour)

	claim, err := c.MaybeCreate(context.Background(), "hw-1", callRecord())
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, int64(1), claim.ClaimNumber)
}

func TestMaybeCreate_ConcurrentNumbersAreDistinctAndSequential(t *testing.T) {
	t.Parallel()

	const n = 32
	fs := &fakeStore{}
	c := NewCreator(fs, 24*time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.MaybeCreate(context.Background(), "hw-1", callRecord())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every creation that went through must hold a distinct sequential
	// number with no gaps, regardless of interleaving.
	numbers := make([]int64, 0, len(fs.created))
	for _, cl := range fs.created {
		numbers = append(numbers, cl.ClaimNumber)
	}
	require.Len(t, numbers, n)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, num := range numbers {
		assert.Equal(t, int64(i+1), num)
	}
}
