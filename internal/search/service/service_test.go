package service_test

//go:generate mockgen -destination ../mocks/ports_mock.go -package mocks prisoner-search/internal/search/ports SnapshotSource,EventSink

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"prisoner-search/internal/search/events"
	"prisoner-search/internal/search/index"
	"prisoner-search/internal/search/ledger"
	"prisoner-search/internal/search/lifecycle"
	"prisoner-search/internal/search/mocks"
	"prisoner-search/internal/search/models"
	"prisoner-search/internal/search/service"
	"prisoner-search/internal/search/status"
	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
)

var testNow = time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite

	ctrl   *gomock.Controller
	source *mocks.MockSnapshotSource
	sink   *mocks.MockEventSink
	index  *index.InMemoryStore
	ledger *ledger.InMemoryStore
	status *status.InMemoryStore
	svc    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockSnapshotSource(s.ctrl)
	s.sink = mocks.NewMockEventSink(s.ctrl)
	s.index = index.NewInMemory()
	s.ledger = ledger.NewInMemory()
	s.status = status.NewInMemory()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(s.source, s.index, s.ledger, s.status, s.sink, logger,
		service.WithClock(func() time.Time { return testNow }),
		service.WithRebuildConcurrency(2),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) prisoner(number string, mutate ...func(*models.Prisoner)) *models.Prisoner {
	p := &models.Prisoner{
		PrisonerNumber: id.PrisonerNumber(number),
		FirstName:      "ROBERT",
		LastName:       "LARSEN",
		Status:         "ACTIVE IN",
		InOutStatus:    models.InOutStatusIn,
		PrisonID:       "MDI",
		PrisonName:     "Moorland (HMP & YOI)",
		Alerts:         []string{"HA"},
	}
	for _, fn := range mutate {
		fn(p)
	}
	return p
}

// seed installs a previous snapshot in the live slot and records its hash in
// the ledger, as an earlier reconcile would have.
func (s *ServiceSuite) seed(ctx context.Context, p *models.Prisoner) {
	st, err := s.status.Get(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.index.Put(ctx, st.CurrentIndex, p))
	changed, err := s.ledger.UpsertIfChanged(ctx, p.PrisonerNumber, p.Hash(), testNow.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().True(changed)
}

func (s *ServiceSuite) TestReconcile_FirstObservation() {
	ctx := context.Background()
	current := s.prisoner("A1234AA")
	s.source.EXPECT().Fetch(gomock.Any(), current.PrisonerNumber).Return(current, nil)

	var published events.Envelope
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Envelope) error {
			published = e
			return nil
		})

	outcome, err := s.svc.Reconcile(ctx, current.PrisonerNumber)
	s.Require().NoError(err)
	s.Equal(service.OutcomeCreated, outcome)

	s.Run("snapshot lands in the live slot", func() {
		stored, err := s.index.Get(ctx, models.IndexA, current.PrisonerNumber)
		s.Require().NoError(err)
		s.Require().NotNil(stored)
		s.Equal("LARSEN", stored.LastName)
	})

	s.Run("first observation reports all alerts as added", func() {
		s.Equal(events.TypeAlertsUpdated, published.EventType)
	})
}

func (s *ServiceSuite) TestReconcile_UnchangedStateIsSuppressed() {
	ctx := context.Background()
	previous := s.prisoner("A1234AA")
	s.seed(ctx, previous)

	s.source.EXPECT().Fetch(gomock.Any(), previous.PrisonerNumber).Return(s.prisoner("A1234AA"), nil)
	// No Publish expectation: any publish fails the test.

	outcome, err := s.svc.Reconcile(ctx, previous.PrisonerNumber)
	s.Require().NoError(err)
	s.Equal(service.OutcomeUnchanged, outcome)
}

func (s *ServiceSuite) TestReconcile_AlertAdded() {
	ctx := context.Background()
	previous := s.prisoner("A1234AA")
	s.seed(ctx, previous)

	current := s.prisoner("A1234AA", func(p *models.Prisoner) {
		p.Alerts = []string{"HA", "XA"}
	})
	s.source.EXPECT().Fetch(gomock.Any(), current.PrisonerNumber).Return(current, nil)

	var published events.Envelope
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Envelope) error {
			published = e
			return nil
		})

	outcome, err := s.svc.Reconcile(ctx, current.PrisonerNumber)
	s.Require().NoError(err)
	s.Equal(service.OutcomeUpdated, outcome)

	s.Equal(events.TypeAlertsUpdated, published.EventType)
	update, ok := published.AdditionalInformation.(*events.AlertsUpdated)
	s.Require().True(ok)
	s.Equal([]string{"XA"}, update.AlertsAdded)
	s.Empty(update.AlertsRemoved)
}

func (s *ServiceSuite) TestReconcile_TransferIn() {
	ctx := context.Background()
	previous := s.prisoner("A1234AA", func(p *models.Prisoner) {
		p.InOutStatus = models.InOutStatusTransfer
		p.PrisonID = ""
		p.PrisonName = ""
	})
	s.seed(ctx, previous)

	current := s.prisoner("A1234AA")
	s.source.EXPECT().Fetch(gomock.Any(), current.PrisonerNumber).Return(current, nil)

	var published events.Envelope
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e events.Envelope) error {
			published = e
			return nil
		})

	outcome, err := s.svc.Reconcile(ctx, current.PrisonerNumber)
	s.Require().NoError(err)
	s.Equal(service.OutcomeUpdated, outcome)

	s.Equal(events.TypeReceived, published.EventType)
	info, ok := published.AdditionalInformation.(events.ReceivedInformation)
	s.Require().True(ok)
	s.Equal("MDI", info.PrisonID.String())
	s.Equal(models.MovementReasonTransfer, info.Reason)
}

func (s *ServiceSuite) TestReconcile_DualWriteDuringRebuild() {
	ctx := context.Background()
	s.Require().NoError(s.status.StartBuild(ctx, testNow))

	current := s.prisoner("A1234AA")
	s.source.EXPECT().Fetch(gomock.Any(), current.PrisonerNumber).Return(current, nil)
	s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.svc.Reconcile(ctx, current.PrisonerNumber)
	s.Require().NoError(err)

	for _, slot := range []models.SyncIndex{models.IndexA, models.IndexB} {
		stored, err := s.index.Get(ctx, slot, current.PrisonerNumber)
		s.Require().NoError(err)
		s.NotNil(stored, "snapshot missing from slot %s", slot)
	}
}

func (s *ServiceSuite) TestReconcile_SourceForgotIdentity() {
	ctx := context.Background()
	previous := s.prisoner("A1234AA")
	s.seed(ctx, previous)

	s.source.EXPECT().Fetch(gomock.Any(), previous.PrisonerNumber).Return(nil, nil)

	outcome, err := s.svc.Reconcile(ctx, previous.PrisonerNumber)
	s.Require().NoError(err)
	s.Equal(service.OutcomeDeleted, outcome)

	stored, err := s.index.Get(ctx, models.IndexA, previous.PrisonerNumber)
	s.Require().NoError(err)
	s.Nil(stored)
}

func (s *ServiceSuite) TestReconcile_UnknownAbsentIdentityIsNoop() {
	ctx := context.Background()
	number := id.PrisonerNumber("A9999ZZ")
	s.source.EXPECT().Fetch(gomock.Any(), number).Return(nil, nil)

	outcome, err := s.svc.Reconcile(ctx, number)
	s.Require().NoError(err)
	s.Equal(service.OutcomeUnchanged, outcome)
}

func (s *ServiceSuite) TestReconcile_MalformedSnapshotRejected() {
	ctx := context.Background()
	number := id.PrisonerNumber("A1234AA")
	s.source.EXPECT().Fetch(gomock.Any(), number).Return(&models.Prisoner{}, nil)

	_, err := s.svc.Reconcile(ctx, number)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	stored, err := s.index.Get(ctx, models.IndexA, number)
	s.Require().NoError(err)
	s.Nil(stored)
}

func (s *ServiceSuite) TestPopulateIndex() {
	ctx := context.Background()

	s.Run("rejected while no build is in flight", func() {
		_, err := s.svc.PopulateIndex(ctx)
		s.Require().ErrorIs(err, lifecycle.ErrBuildNotInProgress)
	})

	s.Require().NoError(s.status.StartBuild(ctx, testNow))

	all := []*models.Prisoner{
		s.prisoner("A1234AA"),
		s.prisoner("B2345BB"),
		s.prisoner("C3456CC"),
	}
	s.source.EXPECT().StreamAll(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(*models.Prisoner) error) error {
			for _, p := range all {
				if err := fn(p); err != nil {
					return err
				}
			}
			return nil
		})

	written, err := s.svc.PopulateIndex(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), written)

	count, err := s.index.Count(ctx, models.IndexB)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *ServiceSuite) TestPopulateIndex_SkipsMalformedSnapshots() {
	ctx := context.Background()
	s.Require().NoError(s.status.StartBuild(ctx, testNow))

	s.source.EXPECT().StreamAll(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(*models.Prisoner) error) error {
			if err := fn(&models.Prisoner{}); err != nil {
				return err
			}
			return fn(s.prisoner("A1234AA"))
		})

	written, err := s.svc.PopulateIndex(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), written)
}
