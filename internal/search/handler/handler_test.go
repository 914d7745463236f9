package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prisoner-search/internal/search/handler"
	"prisoner-search/internal/search/index"
	"prisoner-search/internal/search/lifecycle"
	"prisoner-search/internal/search/models"
	"prisoner-search/internal/search/status"
	id "prisoner-search/pkg/domain"
	"prisoner-search/pkg/testutil"
)

// indexSearcher serves lookups straight from the in-memory index, the way
// the sync service does against the live slot.
type indexSearcher struct {
	index  *index.InMemoryStore
	status *status.InMemoryStore
}

func (s *indexSearcher) GetPrisoner(ctx context.Context, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error) {
	st, err := s.status.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.index.Get(ctx, st.CurrentIndex, prisonerNumber)
}

// recordingPopulator notes that population was kicked off.
type recordingPopulator struct {
	mu    sync.Mutex
	calls int
}

func (p *recordingPopulator) PopulateIndex(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 0, nil
}

func (p *recordingPopulator) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	router    chi.Router
	indexes   *index.InMemoryStore
	statuses  *status.InMemoryStore
	populator *recordingPopulator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	indexes := index.NewInMemory()
	statuses := status.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager, err := lifecycle.New(statuses, indexes, time.Now, logger)
	require.NoError(t, err)

	populator := &recordingPopulator{}
	h := handler.New(manager, &indexSearcher{index: indexes, status: statuses}, populator, logger)

	router := chi.NewRouter()
	h.Register(router)
	return &fixture{router: router, indexes: indexes, statuses: statuses, populator: populator}
}

func TestBuildIndex(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	resp := testutil.UnmarshalResponse[models.IndexStatus](t, rr)
	assert.True(t, resp.InProgress)

	assert.Eventually(t, func() bool { return f.populator.callCount() == 1 },
		time.Second, 10*time.Millisecond, "population should be kicked off")
}

func TestBuildIndex_ConflictWhileBuilding(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestMarkComplete(t *testing.T) {
	f := newFixture(t)

	t.Run("rejected while idle", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/mark-complete"))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	t.Run("completes an in-flight build", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
		testutil.AssertStatus(t, rr, http.StatusAccepted)

		rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/mark-complete"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[models.IndexStatus](t, rr)
		assert.False(t, resp.InProgress)
	})
}

func TestSwitchIndex(t *testing.T) {
	f := newFixture(t)

	t.Run("flips the live slot while idle", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/switch-index"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[struct {
			CurrentIndex models.SyncIndex `json:"currentIndex"`
		}](t, rr)
		assert.Equal(t, models.IndexB, resp.CurrentIndex)
	})

	t.Run("rejected while building", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
		testutil.AssertStatus(t, rr, http.StatusAccepted)

		rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/switch-index"))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})
}

func TestIndexCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.indexes.Put(ctx, models.IndexA, &models.Prisoner{PrisonerNumber: "A1234AA"}))
	require.NoError(t, f.indexes.Put(ctx, models.IndexA, &models.Prisoner{PrisonerNumber: "B2345BB"}))
	require.NoError(t, f.indexes.Put(ctx, models.IndexB, &models.Prisoner{PrisonerNumber: "A1234AA"}))

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/maintain-index/index-count"))
	testutil.AssertStatus(t, rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[struct {
		Counts map[models.SyncIndex]int64 `json:"counts"`
	}](t, rr)
	assert.Equal(t, int64(2), resp.Counts[models.IndexA])
	assert.Equal(t, int64(1), resp.Counts[models.IndexB])
}

func TestFullRebuildCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.Given(t, "a live index serving from slot a", func(t *testing.T) {
		require.NoError(t, f.indexes.Put(ctx, models.IndexA, &models.Prisoner{PrisonerNumber: "A1234AA"}))

		testutil.When(t, "a rebuild runs to completion and the slots are switched", func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/build-index"))
			testutil.AssertStatus(t, rr, http.StatusAccepted)

			require.NoError(t, f.indexes.Put(ctx, models.IndexB, &models.Prisoner{PrisonerNumber: "A1234AA"}))
			require.NoError(t, f.indexes.Put(ctx, models.IndexB, &models.Prisoner{PrisonerNumber: "B2345BB"}))

			rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/mark-complete"))
			testutil.AssertStatus(t, rr, http.StatusOK)

			rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPut, "/maintain-index/switch-index"))
			testutil.AssertStatus(t, rr, http.StatusOK)

			testutil.Then(t, "lookups serve from the freshly built slot", func(t *testing.T) {
				rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/prisoner/B2345BB"))
				testutil.AssertStatus(t, rr, http.StatusOK)
			})
		})
	})
}

func TestGetPrisoner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.indexes.Put(ctx, models.IndexA, &models.Prisoner{
		PrisonerNumber: "A1234AA",
		LastName:       "LARSEN",
	}))

	t.Run("returns the live-slot snapshot", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/prisoner/A1234AA"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[models.Prisoner](t, rr)
		assert.Equal(t, "LARSEN", resp.LastName)
	})

	t.Run("unknown identity is a 404", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/prisoner/Z9999ZZ"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("malformed prisoner number is rejected", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/prisoner/not-a-number"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})
}
