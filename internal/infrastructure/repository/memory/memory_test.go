package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

func TestNextReportNumberIsUniqueUnderConcurrency(t *testing.T) {
	repo := NewReportRepository()
	const workers, perWorker = 16, 50

	var mu sync.Mutex
	var got []int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			prev := int64(0)
			for i := 0; i < perWorker; i++ {
				n, err := repo.NextReportNumber(context.Background())
				assert.NoError(t, err)
				assert.Greater(t, n, prev)
				prev = n
				local = append(local, n)
			}
			mu.Lock()
			got = append(got, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, got, workers*perWorker)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, n := range got {
		assert.Equal(t, int64(i+1), n)
	}
}

func newReport(id, number string, created time.Time) *domain.Report {
	year := 2010
	weight := 2.0
	return &domain.Report{
		ID:                  id,
		ReportNumber:        number,
		Status:              domain.ReportStatusDraft,
		AssignedAppraiserID: "u-1",
		Title:               "Report " + number,
		CreatedAt:           created,
		UpdatedAt:           created,
		ValuationInput:      domain.ValuationInput{YearBuilt: &year},
		Comparables:         []domain.MarketComparable{{ID: "c-1", Price: 10, Weight: &weight}},
		AuditTrail:          []domain.AuditEntry{{Action: domain.AuditActionCreated, Metadata: map[string]string{"k": "v"}}},
	}
}

func TestReportsAreIsolatedFromCallers(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	r := newReport("r-1", "APR-2026-0001", time.Now())
	require.NoError(t, repo.Create(ctx, r))

	*r.ValuationInput.YearBuilt = 1999
	*r.Comparables[0].Weight = 9
	r.AuditTrail[0].Metadata["k"] = "changed"

	got, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 2010, *got.ValuationInput.YearBuilt)
	assert.Equal(t, 2.0, *got.Comparables[0].Weight)
	assert.Equal(t, "v", got.AuditTrail[0].Metadata["k"])
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	require.NoError(t, repo.Create(ctx, newReport("r-1", "APR-2026-0001", time.Now())))

	assert.ErrorIs(t, repo.Create(ctx, newReport("r-1", "APR-2026-0002", time.Now())), domain.ErrConflict)
	assert.ErrorIs(t, repo.Create(ctx, newReport("r-2", "APR-2026-0001", time.Now())), domain.ErrConflict)
}

func TestUpdateKeepsStatusFields(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	require.NoError(t, repo.Create(ctx, newReport("r-1", "APR-2026-0001", time.Now())))

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateStatus(ctx, "r-1", domain.StatusChange{
		To:          domain.ReportStatusForReview,
		SubmittedAt: &at,
		UpdatedAt:   at,
		Audit:       domain.AuditEntry{Action: domain.AuditActionStatusChanged},
	}))

	edited, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	edited.Title = "edited"
	edited.Status = domain.ReportStatusApproved
	require.NoError(t, repo.Update(ctx, edited, domain.AuditEntry{Action: domain.AuditActionUpdated}))

	got, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Title)
	assert.Equal(t, domain.ReportStatusForReview, got.Status)
	require.NotNil(t, got.SubmittedAt)
	assert.Equal(t, at, *got.SubmittedAt)
	require.Len(t, got.AuditTrail, 3)
	assert.Equal(t, domain.AuditActionUpdated, got.AuditTrail[2].Action)
}

func TestUpdateFromStaleCopyKeepsTransitionAudit(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	require.NoError(t, repo.Create(ctx, newReport("r-1", "APR-2026-0001", time.Now())))

	stale, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateStatus(ctx, "r-1", domain.StatusChange{
		To:          domain.ReportStatusForReview,
		SubmittedAt: &at,
		UpdatedAt:   at,
		Audit:       domain.AuditEntry{Action: domain.AuditActionStatusChanged},
	}))

	stale.Title = "edited"
	stale.AuditTrail = nil
	require.NoError(t, repo.Update(ctx, stale, domain.AuditEntry{Action: domain.AuditActionAttachmentAdded}))

	got, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusForReview, got.Status)
	actions := make([]string, 0, len(got.AuditTrail))
	for _, e := range got.AuditTrail {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{domain.AuditActionCreated, domain.AuditActionStatusChanged, domain.AuditActionAttachmentAdded}, actions)
}

func TestUpdateValuationAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	require.NoError(t, repo.Create(ctx, newReport("r-1", "APR-2026-0001", time.Now())))

	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateValuation(ctx, "r-1",
		domain.ValuationInput{BuildingRate: 5}, domain.ValuationResult{LiquidationValue: 42}, at))
	got, err := repo.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ValuationResult.LiquidationValue)
	assert.Equal(t, at, got.UpdatedAt)

	require.NoError(t, repo.Delete(ctx, "r-1"))
	_, err = repo.GetByID(ctx, "r-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "r-1"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateValuation(ctx, "r-1", domain.ValuationInput{}, domain.ValuationResult{}, at), domain.ErrNotFound)
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newReport("r-1", "APR-2026-0001", base)))
	require.NoError(t, repo.Create(ctx, newReport("r-2", "APR-2026-0002", base.Add(time.Hour))))
	other := newReport("r-3", "APR-2026-0003", base.Add(2*time.Hour))
	other.AssignedAppraiserID = "u-2"
	require.NoError(t, repo.Create(ctx, other))

	all, err := repo.List(ctx, domain.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r-3", "r-2", "r-1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := repo.List(ctx, domain.ReportFilter{AssignedAppraiserID: "u-1", Search: "0002"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "r-2", mine[0].ID)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(
		domain.User{ID: "u-1", Username: "budi", Role: domain.RoleAppraiser},
		domain.User{ID: "u-2", Username: "sari", Role: domain.RoleSupervisor},
	)

	u, err := repo.FindByUsername(ctx, "BUDI")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	appraisers, err := repo.ListByRole(ctx, domain.RoleAppraiser)
	require.NoError(t, err)
	assert.Len(t, appraisers, 1)

	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "u-3", Username: "sari"}), domain.ErrConflict)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditLogAppendsInOrder(t *testing.T) {
	log := NewAuditLog()
	require.NoError(t, log.Append(context.Background(), domain.AuditRecord{Action: "a"}))
	require.NoError(t, log.Append(context.Background(), domain.AuditRecord{Action: "b"}))
	records := log.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Action)
	assert.Equal(t, "b", records[1].Action)
}

func TestAuditLogListByReport(t *testing.T) {
	ctx := context.Background()
	log := NewAuditLog()
	require.NoError(t, log.Append(ctx, domain.AuditRecord{ReportID: "r-1", Action: "created"}))
	require.NoError(t, log.Append(ctx, domain.AuditRecord{ReportID: "r-2", Action: "created"}))
	require.NoError(t, log.Append(ctx, domain.AuditRecord{ReportID: "r-1", Action: "status_changed"}))

	records, err := log.ListByReport(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "status_changed", records[1].Action)

	none, err := log.ListByReport(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
